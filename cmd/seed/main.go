package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduler/internal/db"
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

// Applies the schema, loads the built-in provider roster and fills the
// next few weeks with plausible bookings for local development.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	schemaPath := os.Getenv("SCHEMA_FILE")
	if schemaPath == "" {
		schemaPath = "migrations/001_init.sql"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := applySchema(context.Background(), pool, schemaPath); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	providers := schedule.DefaultProviders()
	if err := seedProviders(context.Background(), pool, providers); err != nil {
		log.Fatalf("seed providers: %v", err)
	}

	holidays := yearEndClosures(time.Now().UTC().Year())
	if err := seedHolidays(context.Background(), pool, holidays); err != nil {
		log.Fatalf("seed holidays: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	catalog, err := schedule.NewCatalog(providers)
	if err != nil {
		log.Fatalf("invalid provider roster: %v", err)
	}
	gen := schedule.NewGenerator(catalog, schedule.NewClosureSet(holidays))

	if err := seedReservations(context.Background(), pool, gen, 28); err != nil {
		log.Fatalf("seed reservations: %v", err)
	}

	log.Println("seed complete")
}

func applySchema(ctx context.Context, pool *pgxpool.Pool, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return err
	}
	log.Printf("schema applied from %s", path)
	return nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, providers []schedule.Provider) error {
	log.Printf("seeding %d providers", len(providers))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range providers {
		tmpl, err := json.Marshal(p.Template)
		if err != nil {
			return fmt.Errorf("encode template for %s: %w", p.ID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO providers (id, name, color, template, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    color = EXCLUDED.color,
			    template = EXCLUDED.template,
			    updated_at = now()
		`, p.ID, p.Name, p.Color, tmpl)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// yearEndClosures is the clinic's standing Dec 29 - Jan 3 closure.
func yearEndClosures(year int) []time.Time {
	var out []time.Time
	for d := 29; d <= 31; d++ {
		out = append(out, time.Date(year, time.December, d, 0, 0, 0, 0, time.UTC))
	}
	for d := 1; d <= 3; d++ {
		out = append(out, time.Date(year+1, time.January, d, 0, 0, 0, 0, time.UTC))
	}
	return out
}

func seedHolidays(ctx context.Context, pool *pgxpool.Pool, dates []time.Time) error {
	for _, d := range dates {
		_, err := pool.Exec(ctx, `
			INSERT INTO holiday_overrides (date, reason)
			VALUES ($1, 'year-end closure')
			ON CONFLICT (date) DO NOTHING
		`, d)
		if err != nil {
			return err
		}
	}
	log.Printf("holiday overrides seeded: %d", len(dates))
	return nil
}

// seedReservations books roughly a third of the open slots over the
// coming days. Collisions with already-seeded slots are skipped via the
// partial unique index, so reruns only top the data up.
func seedReservations(ctx context.Context, pool *pgxpool.Pool, gen *schedule.Generator, days int) error {
	log.Printf("seeding reservations over %d days", days)

	today := schedule.DateOf(time.Now().UTC())
	inserted := 0

	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i)

		for _, providerID := range gen.Catalog().IDs() {
			for _, slot := range gen.SlotsFor(providerID, date) {
				if gofakeit.Number(0, 2) != 0 {
					continue
				}

				// About one booking in five arrives without a
				// preference and waits for the resolver.
				preferred := &providerID
				assigned := &providerID
				if gofakeit.Number(0, 4) == 0 {
					preferred = nil
					assigned = nil
				}

				tag, err := pool.Exec(ctx, `
					INSERT INTO reservations (date, time_slot, preferred_provider_id, assigned_provider_id, status, patient_ref, created_at, updated_at)
					VALUES ($1, $2, $3, $4, 'confirmed', $5, now(), now())
					ON CONFLICT (date, assigned_provider_id, time_slot) WHERE status <> 'cancelled' DO NOTHING
				`, date, string(slot), preferred, assigned, gofakeit.DigitN(8))
				if err != nil {
					return err
				}
				inserted += int(tag.RowsAffected())
			}
		}
	}

	log.Printf("reservations seeded: %d", inserted)
	return nil
}
