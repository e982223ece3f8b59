package service

import (
	"context"
	"fmt"

	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/config"
	"hospital-inventory/pkg/logger"

	"github.com/shopspring/decimal"
)

// SeedReport counts what a seed run actually inserted.
type SeedReport struct {
	Users     int `json:"users"`
	Suppliers int `json:"suppliers"`
	Items     int `json:"items"`
}

type SeedService interface {
	Seed(ctx context.Context) (*SeedReport, error)
}

type seedService struct {
	users     repository.UserRepository
	suppliers repository.SupplierRepository
	items     repository.ItemRepository
	txManager repository.TransactionManager
	ledger    *stockLedger
	cfg       config.SeedConfig
	log       *logger.Logger
}

func NewSeedService(
	users repository.UserRepository,
	suppliers repository.SupplierRepository,
	items repository.ItemRepository,
	movements repository.StockMovementRepository,
	txManager repository.TransactionManager,
	cfg config.SeedConfig,
	log *logger.Logger,
) SeedService {
	if log == nil {
		log = logger.Nop()
	}
	return &seedService{
		users:     users,
		suppliers: suppliers,
		items:     items,
		txManager: txManager,
		ledger:    newStockLedger(items, movements, nil),
		cfg:       cfg,
		log:       log,
	}
}

type seedItem struct {
	code, name, category, unit string
	quantity, reorder          int
	price                      string
	supplier                   string
}

var seedSuppliers = []model.Supplier{
	{Name: "MedSupply Co.", ContactPerson: "Linh Tran", Phone: "+84 28 3822 0001", Email: "orders@medsupply.example", IsActive: true},
	{Name: "Surgical Partners Ltd.", ContactPerson: "An Nguyen", Phone: "+84 24 3936 0002", Email: "sales@surgicalpartners.example", IsActive: true},
}

var seedItems = []seedItem{
	{"MED-PARA-500", "Paracetamol 500mg", model.CategoryMedicine, "box", 120, 30, "2.50", "MedSupply Co."},
	{"MED-AMOX-250", "Amoxicillin 250mg", model.CategoryMedicine, "box", 60, 20, "4.20", "MedSupply Co."},
	{"SUR-GLOVE-M", "Surgical Gloves (M)", model.CategorySurgical, "pair", 500, 100, "0.35", "Surgical Partners Ltd."},
	{"SUR-MASK-N95", "N95 Respirator", model.CategorySurgical, "piece", 200, 50, "1.10", "Surgical Partners Ltd."},
	{"CON-SYR-5ML", "Syringe 5ml", model.CategoryConsumable, "piece", 800, 200, "0.12", "MedSupply Co."},
	{"LAB-TUBE-EDTA", "EDTA Blood Tube", model.CategoryLaboratory, "piece", 40, 50, "0.28", ""},
}

// Seed inserts default accounts, suppliers and items. Existing usernames,
// supplier names and item codes are left untouched, so it is safe to rerun.
func (s *seedService) Seed(ctx context.Context) (*SeedReport, error) {
	report := &SeedReport{}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.seedUsers(txCtx, report); err != nil {
			return err
		}
		suppliers, err := s.seedSuppliers(txCtx, report)
		if err != nil {
			return err
		}
		return s.seedItems(txCtx, suppliers, report)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"users":     report.Users,
		"suppliers": report.Suppliers,
		"items":     report.Items,
	}), "seed completed")
	return report, nil
}

func (s *seedService) seedUsers(ctx context.Context, report *SeedReport) error {
	accounts := []struct {
		username, password, fullName, role string
	}{
		{s.cfg.AdminUsername, s.cfg.AdminPassword, "Administrator", model.RoleAdmin},
		{s.cfg.SubordinateUsername, s.cfg.SubordinatePassword, "Ward Staff", model.RoleSubordinate},
	}
	for _, a := range accounts {
		if a.username == "" {
			continue
		}
		if _, err := s.users.GetByUsername(ctx, a.username); err == nil {
			continue
		} else if !apperror.IsNotFound(err) {
			return fmt.Errorf("failed to check user %s: %w", a.username, err)
		}

		hashed, err := hashPassword(a.password)
		if err != nil {
			return err
		}
		user := &model.User{Username: a.username, Password: hashed, FullName: a.fullName, Role: a.role, IsActive: true}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", a.username, err)
		}
		report.Users++
	}
	return nil
}

func (s *seedService) seedSuppliers(ctx context.Context, report *SeedReport) (map[string]*model.Supplier, error) {
	byName := make(map[string]*model.Supplier, len(seedSuppliers))
	for _, tmpl := range seedSuppliers {
		existing, err := s.suppliers.FindByName(ctx, tmpl.Name)
		if err == nil {
			byName[tmpl.Name] = existing
			continue
		}
		if !apperror.IsNotFound(err) {
			return nil, fmt.Errorf("failed to check supplier %s: %w", tmpl.Name, err)
		}

		supplier := tmpl
		if err := s.suppliers.Create(ctx, &supplier); err != nil {
			return nil, fmt.Errorf("failed to seed supplier %s: %w", tmpl.Name, err)
		}
		byName[tmpl.Name] = &supplier
		report.Suppliers++
	}
	return byName, nil
}

func (s *seedService) seedItems(ctx context.Context, suppliers map[string]*model.Supplier, report *SeedReport) error {
	for _, tmpl := range seedItems {
		if _, err := s.items.FindByCode(ctx, tmpl.code); err == nil {
			continue
		} else if !apperror.IsNotFound(err) {
			return fmt.Errorf("failed to check item %s: %w", tmpl.code, err)
		}

		item := &model.Item{
			Code:         tmpl.code,
			Name:         tmpl.name,
			Category:     tmpl.category,
			Unit:         tmpl.unit,
			ReorderLevel: tmpl.reorder,
			UnitPrice:    decimal.RequireFromString(tmpl.price),
		}
		if sup, ok := suppliers[tmpl.supplier]; ok {
			item.SupplierID = &sup.ID
		}
		if err := s.items.Create(ctx, item); err != nil {
			return fmt.Errorf("failed to seed item %s: %w", tmpl.code, err)
		}
		if err := s.ledger.apply(ctx, item, tmpl.quantity, model.MovementAdjust, model.RefItem, &item.ID, SystemActor, "opening balance"); err != nil {
			return err
		}
		report.Items++
	}
	return nil
}
