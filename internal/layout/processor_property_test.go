//go:build property
// +build property

package layout

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propNames = []string{"root", "a", "b", "c", "d", "e"}

// buildDoc turns a list of opcodes into a layout document mixing
// declarations and directives over a small set of names.
func buildDoc(ops []int) string {
	var sb strings.Builder
	sb.WriteString(`<layout><container name="root">`)
	depth := 0
	for i, op := range ops {
		name := propNames[op%len(propNames)]
		other := propNames[(op/7)%len(propNames)]
		switch op % 9 {
		case 0, 1:
			sb.WriteString(fmt.Sprintf(`<block name="%s" v="%d"/>`, name, i))
		case 2:
			sb.WriteString(fmt.Sprintf(`<container name="%s">`, name))
			depth++
		case 3:
			if depth > 0 {
				sb.WriteString(`</container>`)
				depth--
			}
		case 4:
			sb.WriteString(fmt.Sprintf(`<remove name="%s"/>`, name))
		case 5:
			sb.WriteString(fmt.Sprintf(`<move element="%s" destination="%s"/>`, name, other))
		case 6:
			sb.WriteString(fmt.Sprintf(`<move element="%s" destination="%s" before="%s"/>`, name, other, propNames[i%len(propNames)]))
		case 7:
			sb.WriteString(fmt.Sprintf(`<referenceContainer name="%s"><block name="%s" r="%d"/></referenceContainer>`, name, other, i))
		case 8:
			sb.WriteString(fmt.Sprintf(`<referenceBlock name="%s" mark="%d"/>`, name, i))
		}
	}
	for ; depth > 0; depth-- {
		sb.WriteString(`</container>`)
	}
	sb.WriteString(`</container></layout>`)
	return sb.String()
}

func TestProcessorProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	ops := gen.SliceOfN(24, gen.IntRange(0, 500))

	properties.Property("processing is deterministic", prop.ForAll(
		func(a, b []int) bool {
			docs := []string{buildDoc(a), buildDoc(b)}
			first := Process(MergeTrees([]*Tree{MustParse(docs[0]), MustParse(docs[1])}))
			second := Process(MergeTrees([]*Tree{MustParse(docs[0]), MustParse(docs[1])}))
			return first.Equal(second)
		},
		ops, ops,
	))

	properties.Property("no directives and unique names remain", prop.ForAll(
		func(a, b []int) bool {
			tr := Process(MergeTrees([]*Tree{MustParse(buildDoc(a)), MustParse(buildDoc(b))}))
			seen := make(map[string]bool)
			ok := true
			tr.Walk(tr.Root(), func(id NodeID, _ int) bool {
				k := tr.Kind(id)
				if k.IsDirective() {
					ok = false
				}
				if k.IsStructural() {
					if seen[tr.Name(id)] {
						ok = false
					}
					seen[tr.Name(id)] = true
				}
				return true
			})
			return ok
		},
		ops, ops,
	))

	properties.Property("repeating a remove changes nothing", prop.ForAll(
		func(a []int, pick int) bool {
			name := propNames[pick%len(propNames)]
			removal := fmt.Sprintf(`<layout><remove name="%s"/></layout>`, name)

			once := Process(MergeTrees([]*Tree{MustParse(buildDoc(a)), MustParse(removal)}))
			twice := Process(MergeTrees([]*Tree{MustParse(buildDoc(a)), MustParse(removal), MustParse(removal)}))
			return once.Equal(twice)
		},
		ops, gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
