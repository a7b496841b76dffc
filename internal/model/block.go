package model

// Block is a named container grouping variables, constraints, objectives
// and sub-blocks. A block is not itself registrable with a session; adding
// a block registers the scalar components it contains at that moment.
type Block struct {
	name string

	vars        []*Var
	constraints []*Constraint
	objectives  []*Objective
	blocks      []*Block
}

// NewBlock creates an empty block.
func NewBlock(name string) *Block {
	return &Block{name: name}
}

// Name returns the block's name.
func (b *Block) Name() string { return b.name }

// Kind returns BlockKind.
func (b *Block) Kind() Kind { return BlockKind }

// AddVar appends a variable to the block and returns it.
func (b *Block) AddVar(v *Var) *Var {
	b.vars = append(b.vars, v)
	return v
}

// AddConstraint appends a constraint to the block and returns it.
func (b *Block) AddConstraint(c *Constraint) *Constraint {
	b.constraints = append(b.constraints, c)
	return c
}

// AddObjective appends an objective to the block and returns it.
func (b *Block) AddObjective(o *Objective) *Objective {
	b.objectives = append(b.objectives, o)
	return o
}

// AddBlock appends a sub-block and returns it.
func (b *Block) AddBlock(sub *Block) *Block {
	b.blocks = append(b.blocks, sub)
	return sub
}

// Vars returns the block's immediate variables.
func (b *Block) Vars() []*Var { return b.vars }

// Constraints returns the block's immediate constraints.
func (b *Block) Constraints() []*Constraint { return b.constraints }

// Objectives returns the block's immediate objectives.
func (b *Block) Objectives() []*Objective { return b.objectives }

// Blocks returns the block's immediate sub-blocks.
func (b *Block) Blocks() []*Block { return b.blocks }

// Scalars returns every scalar component contained in the block and its
// sub-blocks, in declaration order: variables first, then constraints,
// then objectives, then sub-block contents. The snapshot reflects the
// block at call time only.
func (b *Block) Scalars() []Scalar {
	var out []Scalar
	for _, v := range b.vars {
		out = append(out, v)
	}
	for _, c := range b.constraints {
		out = append(out, c)
	}
	for _, o := range b.objectives {
		out = append(out, o)
	}
	for _, sub := range b.blocks {
		out = append(out, sub.Scalars()...)
	}
	return out
}

// Model is the root block of a declarative model.
type Model struct {
	Block
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Block: Block{name: name}}
}
