package dag_test

import (
	"errors"
	"fmt"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/dag"
)

func reference(key, target string) custom.Field {
	return custom.Field{Key: key, Kind: custom.Reference{TargetID: target}, Exported: true}
}

func ExampleBuild() {
	nodes := []custom.Node{
		{ID: "order", Fields: []custom.Field{reference("customer", "user")}},
		{ID: "user"},
	}
	g, _ := dag.Build(nodes)
	fmt.Println("order ->", g["order"])
	fmt.Println("resolve:", dag.Order(g))
	// Output:
	// order -> [user]
	// resolve: [user order]
}

func ExampleBuild_cycle() {
	nodes := []custom.Node{
		{ID: "a", Name: "Author", Fields: []custom.Field{reference("book", "b")}},
		{ID: "b", Name: "Book", Fields: []custom.Field{reference("author", "a")}},
	}
	_, err := dag.Build(nodes)

	var cycErr *dag.CyclicDependencyError
	if errors.As(err, &cycErr) {
		fmt.Println(cycErr.Cycle)
	}
	// Output:
	// [Author Book Author]
}

func ExampleWouldCreateCycle() {
	g := dag.Graph{"order": {"user"}, "user": nil}
	fmt.Println(dag.WouldCreateCycle("user", "order", g))
	fmt.Println(dag.WouldCreateCycle("order", "user", g))
	// Output:
	// true
	// false
}
