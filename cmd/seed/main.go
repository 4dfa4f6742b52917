package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawhub/adoption-scheduling/internal/booking"
	"github.com/pawhub/adoption-scheduling/internal/config"
	"github.com/pawhub/adoption-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	typeIDs, err := seedAppointmentTypes(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed appointment types: %v", err)
	}
	if err := seedBookings(context.Background(), pool, cfg.BookingZone, typeIDs, 60); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedAppointmentTypes(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	names := []string{
		"Meet and greet",
		"Adoption interview",
		"Home check review",
		"Pickup appointment",
		"Post-adoption follow-up",
	}

	log.Printf("seeding %d appointment types", len(names))

	ids := make([]uuid.UUID, 0, len(names))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, name := range names {
		id := uuid.New()
		row := tx.QueryRow(ctx, `
			INSERT INTO appointment_types (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT (name) DO UPDATE SET updated_at = now()
			RETURNING id
		`, id, name)
		if err := row.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("appointment types seeded")
	return ids, nil
}

// seedBookings fills the next two weeks with random active bookings so
// availability responses are non-trivial out of the box.
func seedBookings(ctx context.Context, pool *pgxpool.Pool, zone *time.Location, typeIDs []uuid.UUID, count int) error {
	log.Printf("seeding up to %d bookings", count)

	cal := booking.NewCalendar(zone)
	now := time.Now().In(zone)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i := 0; i < count; i++ {
		typeID := typeIDs[gofakeit.Number(0, len(typeIDs)-1)]
		day := cal.StartOfDay(now).AddDate(0, 0, gofakeit.Number(1, 14))
		slots := cal.DaySlots(day)
		slot := slots[gofakeit.Number(0, len(slots)-1)]

		tag, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, appointment_type_id, subject_id, slot_start, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT DO NOTHING
		`, uuid.New(), typeID, uuid.New(), slot)
		if err != nil {
			return err
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("bookings seeded: %d (rest collided with existing reservations)", inserted)
	return nil
}
