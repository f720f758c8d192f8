package filter

// Filter 编译后的过滤器：必选子句的合取，外加可选的析取组。
type Filter struct {
	clauses      []Predicate
	alternatives []Predicate
}

// Clauses 返回必选子句（副本）
func (f *Filter) Clauses() []Predicate {
	return append([]Predicate(nil), f.clauses...)
}

// Alternatives 返回析取组的分支（副本），为空表示没有析取条件
func (f *Filter) Alternatives() []Predicate {
	return append([]Predicate(nil), f.alternatives...)
}

// Root 返回完整谓词树。析取组非空时作为最后一个子句挂在合取上。
func (f *Filter) Root() Predicate {
	clauses := f.Clauses()
	if len(f.alternatives) > 0 {
		clauses = append(clauses, Or{Clauses: f.Alternatives()})
	}
	return And{Clauses: clauses}
}

// Builder 逐步组装 Filter
type Builder struct {
	clauses      []Predicate
	alternatives []Predicate
}

// NewBuilder 创建空构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// Where 追加一个必选子句，nil 会被忽略
func (b *Builder) Where(p Predicate) *Builder {
	if p != nil {
		b.clauses = append(b.clauses, p)
	}
	return b
}

// OrWhere 追加一个析取分支，nil 会被忽略
func (b *Builder) OrWhere(p Predicate) *Builder {
	if p != nil {
		b.alternatives = append(b.alternatives, p)
	}
	return b
}

// Build 生成不可变的 Filter，之后对构建器的修改不影响已生成的结果
func (b *Builder) Build() *Filter {
	return &Filter{
		clauses:      append([]Predicate(nil), b.clauses...),
		alternatives: append([]Predicate(nil), b.alternatives...),
	}
}
