package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/stress"
)

func main() {
	valuation := time.Date(2025, 11, 21, 0, 0, 0, 0, time.UTC)
	quotes := []curve.Quote{
		{Tenor: "3M", Rate: 0.0392},
		{Tenor: "6M", Rate: 0.0381},
		{Tenor: "1Y", Rate: 0.0362},
		{Tenor: "2Y", Rate: 0.0348},
		{Tenor: "3Y", Rate: 0.0351},
		{Tenor: "5Y", Rate: 0.0368},
		{Tenor: "7Y", Rate: 0.0387},
		{Tenor: "10Y", Rate: 0.0409},
		{Tenor: "20Y", Rate: 0.0461},
		{Tenor: "30Y", Rate: 0.0467},
	}
	crv, err := curve.FromQuotes(valuation, quotes)
	if err != nil {
		log.Fatal(err)
	}

	note, err := bond.NewFixedRate(bond.Terms{
		ContractID:   "T-4.25-2034",
		Description:  "T 4 1/4 11/15/34",
		IssueDate:    time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC),
		MaturityDate: time.Date(2034, 11, 15, 0, 0, 0, 0, time.UTC),
		ParValue:     1000,
		Frequency:    2,
	}, 0.0425)
	if err != nil {
		log.Fatal(err)
	}

	p := portfolio.New()
	if err := p.Add(note, portfolio.WithQuantity(1000)); err != nil {
		log.Fatal(err)
	}

	v, err := p.Valuate(context.Background(), crv, valuation)
	if err != nil {
		log.Fatal(err)
	}
	m := v.Results[0].Metrics
	fmt.Printf("Price: %.4f (%.4f%%)\n", m.Price, m.PricePct)
	fmt.Printf("Modified duration: %.4f\n", m.ModifiedDuration)
	fmt.Printf("Convexity: %.4f\n", m.Convexity)
	fmt.Printf("DV01: %.4f\n", m.DV01)
	fmt.Printf("Market value: %.2f\n", v.TotalValue)

	rep, err := stress.NewEngine().Run(context.Background(), stress.Standard(), p, crv, valuation)
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range rep.Scenarios {
		fmt.Printf("%-24s %14.2f\n", s.Name, s.PortfolioDelta)
	}
}
