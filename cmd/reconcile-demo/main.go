// Demo program for rule recovery and conflict detection without an AI backend.
// It runs the rule engine over a sample policy (or a file given as the only
// argument) and prints the conflicts the reconciler finds.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/reconcile"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/rules"
)

const samplePolicy = `SECTION 2 COVERAGE
- Maternity expenses for childbirth are covered up to the sum insured.
- Room rent is covered up to Rs 5000 per day for normal rooms.

SECTION 3 EXCLUSIONS
- Maternity expenses for childbirth are excluded during the first 24 months of the policy.
- Pre-existing diseases are excluded until 48 months of continuous coverage.

SECTION 4 WAITING PERIODS
- 30 days initial waiting period applies to all illnesses except accidents.
- 30 days waiting period for illnesses other than accidental injury.

SECTION 5 LIMITS
- Room rent limit of Rs 3000 per day for normal rooms.
- Co-payment of 20% applies to insured persons aged above 60 years.
`

func main() {
	text := samplePolicy
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		text = string(data)
	}

	fmt.Println("=== Rule Recovery and Conflict Detection ===")
	fmt.Println()

	items := rules.NewEngine().Scan(text)
	byCat := make(map[model.Category][]string)
	for _, item := range items {
		byCat[item.Category] = append(byCat[item.Category], item.Text)
	}

	fmt.Printf("Recovered %d rules\n", len(items))
	fmt.Println(strings.Repeat("-", 60))
	for _, cat := range model.AllCategories() {
		for _, t := range byCat[cat] {
			fmt.Printf("  [%s] %s\n", cat, t)
		}
	}
	fmt.Println()

	rec := reconcile.NewEngine(nil).Reconcile(byCat)
	if len(rec.Conflicts) == 0 {
		fmt.Println("  ✓ No conflicts detected")
		return
	}

	fmt.Printf("  ⚠️  CONFLICTS DETECTED: %d (%d resolvable)\n\n", rec.Summary.Total, rec.Summary.Resolvable)
	for _, c := range rec.Conflicts {
		fmt.Printf("     - %s [%s]", c.Type, c.Severity)
		if c.OverlapScore != nil {
			fmt.Printf(" overlap %.2f", *c.OverlapScore)
		}
		fmt.Println()
		for _, item := range c.Items {
			fmt.Printf("       %s\n", item)
		}
		if c.Resolution != nil {
			fmt.Printf("       -> %s: %s\n", c.Resolution.RecommendedAction, c.Resolution.Explanation)
		}
		fmt.Println()
	}

	if rec.HasCritical {
		fmt.Println("  Critical conflicts present.")
	}
	if rec.RequiresHumanReview {
		fmt.Println("  Human review required.")
	}
}
