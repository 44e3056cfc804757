// Package seeder loads demo circles, items, openings and users.
package seeder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/database"
	"github.com/Additional-Code/pincer/internal/entity"
)

// Module provides the seeder.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	now    func() time.Time
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, now: time.Now, logger: logger}
}

type circleSeed struct {
	circle entity.Circle
	items  []entity.Item
}

var demo = []circleSeed{
	{
		circle: entity.Circle{
			DisplayName:   "Pizzásch",
			Alias:         "pizzasch",
			Description:   "Pizza every Thursday night.",
			CSSClassName:  "pizzasch",
			HomePageOrder: 1,
			Visible:       true,
		},
		items: []entity.Item{
			{Name: "Margherita", Price: 1200, Category: 1, Keywords: "pizza paradicsom", Orderable: true},
			{Name: "Songoku", Price: 1500, Category: 1, Keywords: "pizza sonka kukorica", Orderable: true},
			{
				Name:              "Extra feltétes",
				Price:             1800,
				Category:          2,
				Orderable:         true,
				DetailsConfigJSON: `[{"name":"size","type":"EXTRA_SELECT","values":["32cm","45cm"],"prices":[0,900]}]`,
			},
		},
	},
	{
		circle: entity.Circle{
			DisplayName:   "Americano",
			Alias:         "americano",
			Description:   "Hamburgers and fries.",
			CSSClassName:  "americano",
			HomePageOrder: 2,
			Visible:       true,
		},
		items: []entity.Item{
			{
				Name:              "Hamburger",
				Price:             1400,
				Category:          1,
				Orderable:         true,
				DetailsConfigJSON: `[{"name":"extra","type":"AMERICANO_EXTRA","values":["sajt","bacon"],"prices":[150,250]}]`,
			},
			{Name: "Sült krumpli", Price: 500, Category: 0, Orderable: true, VisibleWithoutLogin: true},
		},
	},
}

// Run seeds circles with their items, one opening per circle starting the
// next evening and a sysadmin user. Circles that already exist are skipped.
func (s *Seeder) Run(ctx context.Context) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		seeded := 0
		for i, seed := range demo {
			exists, err := tx.NewSelect().Model((*entity.Circle)(nil)).Where("alias = ?", seed.circle.Alias).Exists(ctx)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := s.seedCircle(ctx, tx, seed, i); err != nil {
				return fmt.Errorf("seed %s: %w", seed.circle.Alias, err)
			}
			seeded++
		}

		admin := &entity.User{UID: "admin", Name: "Admin", Room: "1", CardType: entity.CardKB, Sysadmin: true, Permissions: []int64{}}
		exists, err := tx.NewSelect().Model((*entity.User)(nil)).Where("uid = ?", admin.UID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := tx.NewInsert().Model(admin).Exec(ctx); err != nil {
				return err
			}
		}

		s.logger.Info("seed data applied", zap.Int("circles", seeded))
		return nil
	})
}

func (s *Seeder) seedCircle(ctx context.Context, tx bun.Tx, seed circleSeed, offset int) error {
	circle := seed.circle
	if _, err := tx.NewInsert().Model(&circle).Exec(ctx); err != nil {
		return err
	}

	for _, item := range seed.items {
		item.CircleID = circle.ID
		item.Visible = true
		item.VisibleInAll = true
		if _, err := tx.NewInsert().Model(&item).Exec(ctx); err != nil {
			return err
		}
	}

	opening := demoOpening(circle.ID, s.now().UTC(), offset)
	if _, err := tx.NewInsert().Model(opening).Exec(ctx); err != nil {
		return err
	}
	for slot := 0; slot < 3; slot++ {
		at := opening.DateStart.Add(time.Duration(slot) * 30 * time.Minute)
		window := &entity.TimeWindow{OpeningID: opening.ID, Name: at.Format("15:04"), Date: at}
		if _, err := tx.NewInsert().Model(window).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// demoOpening opens ordering now and serves offset days after tomorrow at
// 20:00 UTC.
func demoOpening(circleID int64, now time.Time, offset int) *entity.Opening {
	day := time.Date(now.Year(), now.Month(), now.Day()+1+offset, 20, 0, 0, 0, time.UTC)
	return &entity.Opening{
		CircleID:   circleID,
		DateStart:  day,
		DateEnd:    day.Add(2 * time.Hour),
		OrderStart: now.Add(-time.Hour),
		OrderEnd:   day.Add(-2 * time.Hour),
		Feeling:    "Gyere éhesen!",
		MaxOrder:   40,
		MaxAlpha:   30,
		MaxBeta:    10,
	}
}
