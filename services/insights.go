package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"rent-predictor/models"
	"rent-predictor/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *models.Summary {
	report := &models.Summary{
		ByNeighborhood: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	report.MinRent = listings[0].Rent
	report.MaxRent = listings[0].Rent
	report.MostExpensive = listings[0]

	var totalRent, totalArea float64
	for _, l := range listings {
		totalRent += float64(l.Rent)
		totalArea += l.Area
		if l.Rent < report.MinRent {
			report.MinRent = l.Rent
		}
		if l.Rent > report.MaxRent {
			report.MaxRent = l.Rent
			report.MostExpensive = l
		}
		if n := strings.TrimSpace(l.Neighborhood); n != "" {
			report.ByNeighborhood[n]++
		}
	}

	report.AverageRent = round2(totalRent / float64(len(listings)))
	report.AverageArea = round2(totalArea / float64(len(listings)))

	s.logger.Info("[insights] %d listings, rent %d..%d (mean %.2f)",
		report.TotalListings, report.MinRent, report.MaxRent, report.AverageRent)
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.Summary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 RENTAL LISTING INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings : \033[1m%d\033[0m\n", r.TotalListings)
	if r.TotalListings > 0 {
		fmt.Fprintf(w, "  Average area   : \033[1m%.2f m²\033[0m\n", r.AverageArea)
	}
	fmt.Fprintln(w)

	// Rent Stats
	fmt.Fprintf(w, "\033[1;33m  Rent Statistics (per month)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.TotalListings > 0 {
		fmt.Fprintf(w, "  Average rent : \033[1;32m€%.2f\033[0m\n", r.AverageRent)
		fmt.Fprintf(w, "  Minimum rent : \033[1;32m€%d\033[0m\n", r.MinRent)
		fmt.Fprintf(w, "  Maximum rent : \033[1;32m€%d\033[0m\n", r.MaxRent)
	} else {
		fmt.Fprintf(w, "  No rent data available\n")
	}
	fmt.Fprintln(w)

	// Most Expensive
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Address, 50))
		fmt.Fprintf(w, "  Area : %.0f m²\n", r.MostExpensive.Area)
		fmt.Fprintf(w, "  Rent : \033[1;31m€%d/month\033[0m\n", r.MostExpensive.Rent)
		fmt.Fprintln(w)
	}

	// Listings by Neighborhood
	fmt.Fprintf(w, "\033[1;33m  Listings by Neighborhood\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByNeighborhood) == 0 {
		fmt.Fprintf(w, "  No neighborhood data\n")
	} else {
		type hoodCount struct {
			name  string
			count int
		}
		var hoods []hoodCount
		for name, cnt := range r.ByNeighborhood {
			hoods = append(hoods, hoodCount{name, cnt})
		}
		sort.Slice(hoods, func(i, j int) bool {
			if hoods[i].count != hoods[j].count {
				return hoods[i].count > hoods[j].count
			}
			return hoods[i].name < hoods[j].name
		})
		for _, hc := range hoods {
			bar := strings.Repeat("█", min(hc.count, 40))
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(hc.name, 28), bar, hc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
