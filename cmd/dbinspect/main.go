// Package main provides a read-only inspection tool for a Quoteline database.
//
// Usage:
//
//	DB_PATH=~/Quoteline/data/db go run ./cmd/dbinspect
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/quotelineapp/quoteline-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Quoteline/data/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	teams := map[string]string{}
	userCount := 0
	componentsByTeam := map[string]int{}
	assembliesByTeam := map[string]int{}
	quotationsByTeam := map[string]int{}
	withBusinessKey := 0
	shown := 0

	err = db.View(func(txn *badger.Txn) error {
		if err := scanPrefix(txn, "team:", func(key string, val []byte) {
			var team domain.Team
			if json.Unmarshal(val, &team) == nil {
				teams[team.ID] = team.Name
			}
		}); err != nil {
			return err
		}

		if err := scanPrefix(txn, "user:", func(key string, val []byte) {
			userCount++
		}); err != nil {
			return err
		}

		if err := scanPrefix(txn, "cmp:", func(key string, val []byte) {
			var c domain.Component
			if err := json.Unmarshal(val, &c); err != nil {
				log.Printf("Error reading component %s: %v", key, err)
				return
			}

			componentsByTeam[c.TeamID]++
			if c.HasBusinessKey() {
				withBusinessKey++
			}

			// Show the first few components as a spot check.
			if shown < 5 {
				shown++
				fmt.Printf("Component: %s\n", c.Name)
				fmt.Printf("  ID: %s\n", c.ID)
				fmt.Printf("  Team: %s\n", c.TeamID)
				if c.HasBusinessKey() {
					fmt.Printf("  Part: %s %s\n", c.Manufacturer, c.PartNumber)
				}
				if c.OriginalCurrency != "" {
					fmt.Printf("  Cost: %.2f %s\n", c.OriginalCost, c.OriginalCurrency)
				}
				fmt.Printf("  Currencies: %d\n", len(c.CostByCurrency))
				fmt.Println()
			}
		}); err != nil {
			return err
		}

		if err := scanPrefix(txn, "asm:", func(key string, val []byte) {
			var a domain.Assembly
			if json.Unmarshal(val, &a) == nil {
				assembliesByTeam[a.TeamID]++
			}
		}); err != nil {
			return err
		}

		return scanPrefix(txn, "quo:", func(key string, val []byte) {
			var q domain.Quotation
			if json.Unmarshal(val, &q) == nil {
				quotationsByTeam[q.TeamID]++
			}
		})
	})
	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Teams: %d\n", len(teams))
	fmt.Printf("Users: %d\n", userCount)
	totalComponents := 0
	for teamID, name := range teams {
		totalComponents += componentsByTeam[teamID]
		fmt.Printf("  %s (%s): %d components, %d assemblies, %d quotations\n",
			name, teamID,
			componentsByTeam[teamID],
			assembliesByTeam[teamID],
			quotationsByTeam[teamID])
	}
	fmt.Printf("Total components: %d\n", totalComponents)
	if totalComponents > 0 {
		fmt.Printf("Components with business key: %d (%.0f%%)\n",
			withBusinessKey, 100*float64(withBusinessKey)/float64(totalComponents))
	}
}

// scanPrefix walks all primary rows under a key prefix, skipping index
// entries.
func scanPrefix(txn *badger.Txn, prefix string, fn func(key string, val []byte)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	idxPrefix := prefix + "idx:"
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		item := it.Item()
		key := string(item.Key())
		if strings.HasPrefix(key, idxPrefix) {
			continue
		}
		if err := item.Value(func(val []byte) error {
			fn(key, val)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
