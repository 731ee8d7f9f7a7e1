package syntax

// Node is implemented by every tree node. The tree is a closed sum type:
// passes switch on the concrete pointer types below.
type Node interface {
	Span() Span
	node()
}

// Decl is a type member or top-level declaration.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

type base struct {
	Loc Span
	// Doc holds the comments that precede the node in source.
	Doc []string
}

func (b *base) Span() Span { return b.Loc }
func (*base) node()        {}

// Comments returns the leading comments of the node.
func (b *base) Comments() []string { return b.Doc }

// SetComments replaces the leading comments of the node.
func (b *base) SetComments(doc []string) { b.Doc = doc }

// Commented is implemented by nodes that carry leading comments.
type Commented interface {
	Comments() []string
	SetComments([]string)
}

// File is one compilation unit.
type File struct {
	base
	ID      FileID
	Path    string
	Package string
	Imports []*Import
	Types   []*TypeDecl
	// Trailing holds comments after the last declaration.
	Trailing []string
	// Library marks classpath files, which are bound but never rewritten.
	Library bool
}

// Import is an import declaration.
type Import struct {
	base
	Path     string
	Static   bool
	Wildcard bool
}

// TypeDecl is a class or interface, including anonymous class bodies.
type TypeDecl struct {
	base
	Modifiers  []string
	Interface  bool
	Name       string
	TypeParams []string
	Extends    []*TypeRef
	Implements []*TypeRef
	Members    []Decl
	Anonymous  bool
	Sym        *Symbol
	// Trailing holds comments after the last member.
	Trailing []string
}

// FieldDecl declares one field.
type FieldDecl struct {
	base
	Modifiers []string
	Type      *TypeRef
	Name      string
	Init      Expr
	Sym       *Symbol
}

// MethodDecl is a method or constructor.
type MethodDecl struct {
	base
	Modifiers   []string
	TypeParams  []string
	Result      *TypeRef
	Name        string
	Params      []*Param
	Throws      []*TypeRef
	Body        *Block
	Constructor bool
	Sym         *Symbol
}

// Param is a method or lambda parameter. Lambda parameters may omit Type.
type Param struct {
	base
	Modifiers []string
	Type      *TypeRef
	Name      string
	Sym       *Symbol
}

// Block is a braced statement list.
type Block struct {
	base
	Stmts []Stmt
	// Trailing holds comments before the closing brace.
	Trailing []string
}

// LocalVar declares one local variable.
type LocalVar struct {
	base
	Modifiers []string
	Type      *TypeRef
	Name      string
	Init      Expr
	Sym       *Symbol
}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	base
	X Expr
}

// If is a conditional statement. Else may be nil.
type If struct {
	base
	Cond Expr
	Then Stmt
	Else Stmt
}

// While is a pre-tested loop.
type While struct {
	base
	Cond Expr
	Body Stmt
}

// For is a classic three-clause loop.
type For struct {
	base
	Init   []Stmt
	Cond   Expr
	Update []Expr
	Body   Stmt
}

// ForEach is an enhanced for loop over an array or iterable.
type ForEach struct {
	base
	Var  *LocalVar
	Iter Expr
	Body Stmt
}

// Return leaves the enclosing method or lambda. Result may be nil.
type Return struct {
	base
	Result Expr
}

// Throw raises an exception.
type Throw struct {
	base
	X Expr
}

// Branch is break or continue with an optional label.
type Branch struct {
	base
	Tok   string
	Label string
}

// Do is a post-tested loop.
type Do struct {
	base
	Body Stmt
	Cond Expr
}

// Try is a try statement. Resources, Catches and Finally may each be empty.
type Try struct {
	base
	Resources []*LocalVar
	Body      *Block
	Catches   []*Catch
	Finally   *Block
}

// Catch is one catch clause. Param carries the first caught type; the
// remaining alternatives of a multi-catch are in Alts.
type Catch struct {
	base
	Param *LocalVar
	Alts  []*TypeRef
	Body  *Block
}

// Switch is a switch statement in the colon or the arrow form.
type Switch struct {
	base
	Tag   Expr
	Cases []*Case
	Arrow bool
}

// Case is one switch label with the statements it selects. In the colon
// form Body runs up to the next label and falls through; a group of labels
// sharing one body is a run of cases with empty bodies. In the arrow form
// Body is the single target, printed unbraced unless Braced is set.
type Case struct {
	base
	Labels  []Expr
	Default bool
	Body    *Block
	Braced  bool
}

// Sync is a synchronized block.
type Sync struct {
	base
	Lock Expr
	Body *Block
}

// Labeled names a statement for break and continue.
type Labeled struct {
	base
	Label string
	Body  Stmt
}

// Name is a simple identifier.
type Name struct {
	base
	Name string
	Sym  *Symbol
}

// Select is a member access or a qualified name segment.
type Select struct {
	base
	X   Expr
	Sel string
	Sym *Symbol
}

// This is the receiver expression. Qualifier is set for Outer.this.
type This struct {
	base
	Qualifier string
	Sym       *Symbol
}

// Super is the superclass receiver in super.m() calls.
type Super struct {
	base
}

// Call is a method invocation. Recv is nil for unqualified calls.
type Call struct {
	base
	Recv Expr
	Name string
	Args []Expr
	Sym  *Symbol
}

// New instantiates a class. Body is set for anonymous classes.
type New struct {
	base
	Type *TypeRef
	Args []Expr
	Body *TypeDecl
	Sym  *Symbol
}

// NewArray creates an array, either sized (Len) or initialized (Elems).
// Type is nil for a bare initializer such as {a, b}.
type NewArray struct {
	base
	Type    *TypeRef
	Len     []Expr
	Elems   []Expr
	HasInit bool
}

// Assign is simple or compound assignment.
type Assign struct {
	base
	Op  string
	LHS Expr
	RHS Expr
}

// Binary is an infix operation.
type Binary struct {
	base
	Op string
	X  Expr
	Y  Expr
}

// Unary is a prefix or postfix operation.
type Unary struct {
	base
	Op      string
	X       Expr
	Postfix bool
}

// LitKind classifies literals.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitFloat
	LitString
	LitChar
	LitBool
	LitNull
)

// Lit is a literal with its source text.
type Lit struct {
	base
	Kind  LitKind
	Value string
}

// Paren is a parenthesized expression.
type Paren struct {
	base
	X Expr
}

// Cast converts X to Type.
type Cast struct {
	base
	Type *TypeRef
	X    Expr
}

// Cond is the ternary conditional.
type Cond struct {
	base
	Cond Expr
	Then Expr
	Else Expr
}

// Index is array element access.
type Index struct {
	base
	X     Expr
	Index Expr
}

// InstanceOf tests the dynamic type of X.
type InstanceOf struct {
	base
	X    Expr
	Type *TypeRef
}

// Lambda is a function literal. Body is either an Expr or a *Block.
type Lambda struct {
	base
	Params []*Param
	// Parens records whether a single untyped parameter was parenthesized.
	Parens bool
	Body   Node
	Sym    *Symbol
}

func (*TypeDecl) declNode()   {}
func (*FieldDecl) declNode()  {}
func (*MethodDecl) declNode() {}

func (*Block) stmtNode()    {}
func (*LocalVar) stmtNode() {}
func (*ExprStmt) stmtNode() {}
func (*If) stmtNode()       {}
func (*While) stmtNode()    {}
func (*For) stmtNode()      {}
func (*ForEach) stmtNode()  {}
func (*Return) stmtNode()   {}
func (*Throw) stmtNode()    {}
func (*Branch) stmtNode()   {}
func (*Do) stmtNode()       {}
func (*Try) stmtNode()      {}
func (*Switch) stmtNode()   {}
func (*Sync) stmtNode()     {}
func (*Labeled) stmtNode()  {}

func (*Name) exprNode()       {}
func (*Select) exprNode()     {}
func (*This) exprNode()       {}
func (*Super) exprNode()      {}
func (*Call) exprNode()       {}
func (*New) exprNode()        {}
func (*NewArray) exprNode()   {}
func (*Assign) exprNode()     {}
func (*Binary) exprNode()     {}
func (*Unary) exprNode()      {}
func (*Lit) exprNode()        {}
func (*Paren) exprNode()      {}
func (*Cast) exprNode()       {}
func (*Cond) exprNode()       {}
func (*Index) exprNode()      {}
func (*InstanceOf) exprNode() {}
func (*Lambda) exprNode()     {}
