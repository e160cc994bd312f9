// Package main provides a tool to seed the database with a demo catalog.
//
// It creates a team with an admin, a set of exchange rates, and a small
// industrial component catalog with one assembly, then prints the admin's
// API key for use against the server.
//
// Usage:
//
//	DB_PATH=~/Quoteline/data/db go run ./cmd/seed
//	DB_PATH=~/Quoteline/data/db go run ./cmd/seed --team "Demo GmbH"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/service"
	"github.com/quotelineapp/quoteline-server/internal/store"
)

var teamName = flag.String("team", "Demo Team", "Name for the seeded team")

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Quoteline/data/db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := store.New(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	teams := service.NewTeamService(s, nil, nil)
	catalog := service.NewCatalogService(s, nil, nil, nil)
	settings := service.NewSettingsService(s, catalog, nil, nil)

	team, admin, err := teams.CreateTeam(ctx, *teamName, "admin@example.com", "Demo Admin")
	if err != nil {
		log.Fatalf("Failed to create team: %v", err)
	}
	fmt.Printf("Created team %s (%s)\n", team.Name, team.ID)

	rates := domain.RateTable{"EUR": 1, "USD": 1.08, "SEK": 11.3, "GBP": 0.85}
	markup := 0.25
	if _, err := settings.Update(ctx, team.ID, admin.ID, service.SettingsUpdate{
		ExchangeRates: &rates,
		DefaultMarkup: &markup,
	}); err != nil {
		log.Fatalf("Failed to seed settings: %v", err)
	}

	components := []domain.Component{
		{Name: "PLC CPU 1214C DC/DC/DC", Manufacturer: "Siemens", PartNumber: "6ES7214-1AG40-0XB0", Category: "PLC", OriginalCurrency: "EUR", OriginalCost: 345.00},
		{Name: "Digital I/O module SM 1223", Manufacturer: "Siemens", PartNumber: "6ES7223-1BH32-0XB0", Category: "PLC", OriginalCurrency: "EUR", OriginalCost: 178.50},
		{Name: "Frequency converter 2.2kW", Manufacturer: "Danfoss", PartNumber: "FC-302P2K2", Category: "Drive", OriginalCurrency: "EUR", OriginalCost: 612.00},
		{Name: "Contactor 3RT2026 24VDC", Manufacturer: "Siemens", PartNumber: "3RT2026-1BB40", Category: "Switchgear", OriginalCurrency: "EUR", OriginalCost: 43.20},
		{Name: "Safety relay PNOZ s4", Manufacturer: "Pilz", PartNumber: "750104", Category: "Safety", OriginalCurrency: "EUR", OriginalCost: 189.00},
		{Name: "Power supply 24VDC 10A", Manufacturer: "Phoenix Contact", PartNumber: "2904601", Category: "Power", OriginalCurrency: "EUR", OriginalCost: 96.40},
		{Name: "HMI panel KTP700 Basic", Manufacturer: "Siemens", PartNumber: "6AV2123-2GB03-0AX0", Category: "HMI", OriginalCurrency: "EUR", OriginalCost: 521.00},
		{Name: "Ethernet switch 8-port", Manufacturer: "Phoenix Contact", PartNumber: "2702331", Category: "Network", OriginalCurrency: "EUR", OriginalCost: 74.90},
	}

	created := make([]*domain.Component, 0, len(components))
	for i := range components {
		c, err := catalog.CreateComponent(ctx, team.ID, admin.ID, &components[i])
		if err != nil {
			log.Fatalf("Failed to create component %q: %v", components[i].Name, err)
		}
		created = append(created, c)
	}
	fmt.Printf("Created %d components\n", len(created))

	entries := []domain.AssemblyComponent{
		{ComponentID: created[0].ID, Quantity: 1, Position: 1},
		{ComponentID: created[1].ID, Quantity: 2, Position: 2},
		{ComponentID: created[3].ID, Quantity: 4, Position: 3},
		{ComponentID: created[5].ID, Quantity: 1, Position: 4},
	}
	assembly, err := catalog.CreateAssembly(ctx, team.ID, admin.ID, &domain.Assembly{
		Name:        "Control cabinet base",
		Description: "PLC, I/O, contactors, and power supply for a standard cabinet",
		Category:    "Cabinet",
	}, entries)
	if err != nil {
		log.Fatalf("Failed to create assembly: %v", err)
	}
	fmt.Printf("Created assembly %s (%s)\n", assembly.Name, assembly.ID)

	fmt.Println()
	fmt.Printf("Admin email:   %s\n", admin.Email)
	fmt.Printf("Admin API key: %s\n", admin.APIKey)
}
