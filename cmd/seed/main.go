// Command seed loads users, products and menu templates from a YAML file
// into a fresh canteen database and prints an API token for every user.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"canteen/internal/auth"
	"canteen/internal/calendar"
	"canteen/internal/databases"
	"canteen/internal/env"
	"canteen/internal/logging"
	"canteen/internal/notify"
	"canteen/internal/v0/inventory"
	"canteen/internal/v0/meals"
	"canteen/internal/v0/menu"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type seedUser struct {
	Email        string            `yaml:"email"`
	DisplayName  string            `yaml:"displayName"`
	Role         auth.Role         `yaml:"role"`
	Balance      decimal.Decimal   `yaml:"balance"`
	Subscription *seedSubscription `yaml:"subscription"`
	Allergies    []string          `yaml:"allergies"`
	Preferences  []string          `yaml:"preferences"`
}

type seedSubscription struct {
	Type meals.SubscriptionType `yaml:"type"`
	Days int                    `yaml:"days"`
}

type seedTemplate struct {
	Name  string           `yaml:"name"`
	Tags  []string         `yaml:"tags"`
	Items []menu.ItemInput `yaml:"items"`
}

type seedGroup struct {
	Name      string   `yaml:"name"`
	DayOfWeek *int     `yaml:"dayOfWeek"`
	Templates []string `yaml:"templates"`
}

type seedSlot struct {
	DayOfWeek int    `yaml:"dayOfWeek"`
	Template  string `yaml:"template"`
	Group     string `yaml:"group"`
}

type seedWeekPlan struct {
	Name  string     `yaml:"name"`
	Slots []seedSlot `yaml:"slots"`
}

type seedFile struct {
	Users     []seedUser               `yaml:"users"`
	Products  []inventory.ProductInput `yaml:"products"`
	Templates []seedTemplate           `yaml:"templates"`
	Groups    []seedGroup              `yaml:"groups"`
	WeekPlans []seedWeekPlan           `yaml:"weekPlans"`
}

func load(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", env.GetEnv(env.EnvDBPath, "./internal/databases/canteen.db"), "path to the database file")
	file := flag.String("file", "cmd/seed/seed.yaml", "seed file")
	flag.Parse()

	logger, err := logging.Setup(env.GetEnv(env.EnvLogLevel, "info"), "")
	if err != nil {
		log.Fatal(err)
	}
	f, err := load(*file)
	if err != nil {
		logger.WithError(err).Fatal("Failed to read seed file")
	}

	loc, err := calendar.LoadLocation(env.GetEnv(env.EnvTimezone, "UTC"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load timezone")
	}
	db, err := databases.Open(*dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()
	if err := databases.Migrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	s := &seeder{
		users:     auth.NewRepository(db),
		inventory: inventory.NewService(db, inventory.NewRepository(db), notify.Nop(), logger),
		catalog:   menu.NewCatalog(db, menu.NewRepository(db), logger),
	}
	s.tokens = auth.NewTokenStore(s.users)
	s.ledger = meals.NewLedger(db, meals.NewRepository(db), logger)
	s.subs = meals.NewSubscriptions(meals.NewRepository(db), s.ledger, calendar.NewClock(loc), logger)
	s.profile = meals.NewProfile(meals.NewRepository(db), logger)

	if err := s.run(context.Background(), f); err != nil {
		logger.WithError(err).Fatal("Seeding failed")
	}
	logger.Info("Seeding complete")
}

type seeder struct {
	users     *auth.Repository
	tokens    *auth.TokenStore
	ledger    *meals.Ledger
	subs      *meals.Subscriptions
	profile   *meals.Profile
	inventory *inventory.Service
	catalog   *menu.Catalog

	templates map[string]int64
	groups    map[string]int64
}

func (s *seeder) run(ctx context.Context, f *seedFile) error {
	for _, u := range f.Users {
		if err := s.user(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
	}
	for _, p := range f.Products {
		if _, err := s.inventory.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("product %s: %w", p.Name, err)
		}
	}

	s.templates = map[string]int64{}
	for _, t := range f.Templates {
		tpl, err := s.catalog.CreateTemplate(ctx, t.Name, t.Tags, t.Items)
		if err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
		s.templates[t.Name] = tpl.ID
	}

	s.groups = map[string]int64{}
	for _, g := range f.Groups {
		in := menu.GroupInput{Name: g.Name, DayOfWeek: g.DayOfWeek}
		for _, name := range g.Templates {
			id, ok := s.templates[name]
			if !ok {
				return fmt.Errorf("group %s: unknown template %q", g.Name, name)
			}
			in.TemplateIDs = append(in.TemplateIDs, id)
		}
		group, err := s.catalog.CreateGroup(ctx, in)
		if err != nil {
			return fmt.Errorf("group %s: %w", g.Name, err)
		}
		s.groups[g.Name] = group.ID
	}

	for _, p := range f.WeekPlans {
		in, err := s.weekPlan(p)
		if err != nil {
			return err
		}
		if _, err := s.catalog.CreateWeekPlan(ctx, in); err != nil {
			return fmt.Errorf("week plan %s: %w", p.Name, err)
		}
	}
	return nil
}

// user creates the user unless the email is taken, then prints a fresh token
func (s *seeder) user(ctx context.Context, u seedUser) error {
	existing, err := s.users.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	if existing == nil {
		if !u.Role.Valid() {
			return fmt.Errorf("unknown role %q", u.Role)
		}
		if existing, err = s.users.CreateUser(ctx, u.Email, u.DisplayName, u.Role); err != nil {
			return err
		}
		if existing.Role == auth.RoleStudent && u.Balance.IsPositive() {
			if _, err := s.ledger.TopUp(ctx, existing.ID, u.Balance, "Initial balance"); err != nil {
				return err
			}
		}
		if existing.Role == auth.RoleStudent && u.Subscription != nil {
			if _, err := s.subs.Purchase(ctx, existing.ID, u.Subscription.Type, u.Subscription.Days); err != nil {
				return err
			}
		}
		for _, a := range u.Allergies {
			if _, err := s.profile.AddAllergy(ctx, existing.ID, a); err != nil {
				return err
			}
		}
		for _, p := range u.Preferences {
			if _, err := s.profile.AddPreference(ctx, existing.ID, p); err != nil {
				return err
			}
		}
	}

	token, err := s.tokens.IssueToken(ctx, existing.ID, "seed", nil)
	if err != nil {
		return err
	}
	fmt.Printf("%-8s %-28s %s\n", existing.Role, existing.Email, token.RawToken)
	return nil
}

func (s *seeder) weekPlan(p seedWeekPlan) (menu.WeekPlanInput, error) {
	in := menu.WeekPlanInput{Name: p.Name}
	for _, slot := range p.Slots {
		ws := menu.WeekSlot{DayOfWeek: slot.DayOfWeek}
		switch {
		case slot.Template != "":
			id, ok := s.templates[slot.Template]
			if !ok {
				return in, fmt.Errorf("week plan %s: unknown template %q", p.Name, slot.Template)
			}
			ws.TemplateID = &id
		case slot.Group != "":
			id, ok := s.groups[slot.Group]
			if !ok {
				return in, fmt.Errorf("week plan %s: unknown group %q", p.Name, slot.Group)
			}
			ws.GroupID = &id
		}
		in.Slots = append(in.Slots, ws)
	}
	return in, nil
}
