package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"possumtracker/internal/config"
	"possumtracker/internal/logger"
	"possumtracker/internal/metrics"
	"possumtracker/internal/repository/gateway"
	"possumtracker/internal/service/ai"
	"possumtracker/internal/service/stats"
)

func main() {
	visitID := flag.Int64("visit", 0, "Visit to recompute")
	all := flag.Bool("all", false, "Recompute every closed visit")
	flag.Parse()

	if *visitID == 0 && !*all {
		log.Fatal("Nothing to do: pass -visit <id> or -all")
	}

	cfg, err := config.Read()
	if err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}

	ctx := context.Background()
	gw, err := gateway.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer gw.Close()

	calibration, err := ai.Calibrate(cfg.Zones)
	if err != nil {
		log.Fatalf("Failed to calibrate zones: %v", err)
	}
	engine := stats.NewEngine(calibration, gw.Stats, logger.NewNop(), metrics.New())

	ids := []int64{*visitID}
	if *all {
		if ids, err = gw.Visits.ListClosedVisitIDs(ctx); err != nil {
			log.Fatalf("Failed to list visits: %v", err)
		}
	}

	fmt.Printf("Recomputing statistics for %d visit(s) in %s\n", len(ids), cfg.Database.Driver)

	updated, skipped, failed := 0, 0, 0
	for _, id := range ids {
		s, err := engine.Recalculate(ctx, id)
		switch {
		case err != nil:
			log.Printf("⚠️  Visit %d: %v", id, err)
			failed++
		case s == nil:
			log.Printf("⚠️  Visit %d: not enough detections", id)
			skipped++
		default:
			fmt.Printf("  visit %d: %.2f cm in %.1fs, activity %.0f%%\n",
				id, s.TotalDistanceCM, s.TotalTimeSec, s.ActivityRatio*100)
			updated++
		}
	}

	fmt.Printf("✅ %d updated, %d skipped, %d failed\n", updated, skipped, failed)
}
