package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ N int }

func TestSubscribePublish(t *testing.T) {
	Use(New())
	defer Use(nil)

	var got []int
	Subscribe(func(ctx context.Context, e ping) { got = append(got, e.N) })
	Subscribe(func(ctx context.Context, e ping) { got = append(got, e.N*10) })

	Publish(context.Background(), ping{N: 1})
	Publish(context.Background(), pong{N: 2}) // no subscriber, no effect
	Publish(context.Background(), ping{N: 3})

	require.Equal(t, []int{1, 10, 3, 30}, got)
}

func TestPublishWithoutBusIsNoOp(t *testing.T) {
	Use(nil)
	Publish(context.Background(), ping{N: 1})
}
