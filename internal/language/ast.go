package language

import "github.com/vektah/gqlparser/v2/ast"

type (
	QueryDocument       = ast.QueryDocument
	SchemaDocument      = ast.SchemaDocument
	Schema              = ast.Schema
	Source              = ast.Source
	OperationDefinition = ast.OperationDefinition
	SelectionSet        = ast.SelectionSet
	Selection           = ast.Selection
	Field               = ast.Field
	InlineFragment      = ast.InlineFragment
	FragmentDefinition  = ast.FragmentDefinition
	FragmentSpread      = ast.FragmentSpread
	Directive           = ast.Directive
	DirectiveList       = ast.DirectiveList
	DirectiveDefinition = ast.DirectiveDefinition
	FieldDefinition     = ast.FieldDefinition
	Type                = ast.Type
	Definition          = ast.Definition
	DefinitionList      = ast.DefinitionList
	Position            = ast.Position
)

type DefinitionKind = ast.DefinitionKind

type Operation = ast.Operation

const (
	Query        Operation = ast.Query
	Mutation     Operation = ast.Mutation
	Subscription Operation = ast.Subscription

	Object      DefinitionKind = ast.Object
	Interface   DefinitionKind = ast.Interface
	Union       DefinitionKind = ast.Union
	Scalar      DefinitionKind = ast.Scalar
	Enum        DefinitionKind = ast.Enum
	InputObject DefinitionKind = ast.InputObject
)

type (
	FragmentDefinitionList = ast.FragmentDefinitionList
	OperationList          = ast.OperationList
)
