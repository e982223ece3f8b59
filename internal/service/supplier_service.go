package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/pagination"
	"hospital-inventory/pkg/validator"
)

// --- Supplier DTOs ---

type CreateSupplierRequest struct {
	Name          string `json:"name" binding:"required,max=255"`
	ContactPerson string `json:"contactPerson" binding:"max=255"`
	Phone         string `json:"phone" binding:"max=50"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	IsActive      *bool  `json:"isActive"`
}

type UpdateSupplierRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=255"`
	ContactPerson *string `json:"contactPerson"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	Address       *string `json:"address"`
	IsActive      *bool   `json:"isActive"`
}

type SupplierListQuery struct {
	Search string
	Active *bool
	Page   int
	Limit  int
}

type SupplierService interface {
	Create(ctx context.Context, actor Actor, req CreateSupplierRequest) (*model.Supplier, error)
	Get(ctx context.Context, id string) (*model.Supplier, error)
	List(ctx context.Context, q SupplierListQuery) ([]model.Supplier, int64, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateSupplierRequest) (*model.Supplier, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type supplierService struct {
	repo      repository.SupplierRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewSupplierService(repo repository.SupplierRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) SupplierService {
	return &supplierService{repo: repo, auditRepo: auditRepo, txManager: txManager}
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperror.Validation(fmt.Sprintf("invalid email %q", email))
	}
	return nil
}

func (s *supplierService) Create(ctx context.Context, actor Actor, req CreateSupplierRequest) (*model.Supplier, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}

	supplier := &model.Supplier{
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		IsActive:      true,
	}
	if req.IsActive != nil {
		supplier.IsActive = *req.IsActive
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, supplier); err != nil {
			return fmt.Errorf("failed to create supplier: %w", err)
		}
		audit := newAudit(actor, model.ActionCreateSupplier, supplier.ID.String(), supplier.Name, req)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return supplier, nil
}

func (s *supplierService) Get(ctx context.Context, id string) (*model.Supplier, error) {
	supplierID, err := parseID(id, "supplier")
	if err != nil {
		return nil, err
	}
	supplier, err := s.repo.FindByID(ctx, supplierID)
	if err != nil {
		return nil, notFoundOr(err, "supplier")
	}
	return supplier, nil
}

func (s *supplierService) List(ctx context.Context, q SupplierListQuery) ([]model.Supplier, int64, error) {
	p := pagination.New(q.Page, q.Limit)
	suppliers, total, err := s.repo.List(ctx, strings.TrimSpace(q.Search), q.Active, p.Page, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list suppliers: %w", err)
	}
	return suppliers, total, nil
}

func (s *supplierService) Update(ctx context.Context, actor Actor, id string, req UpdateSupplierRequest) (*model.Supplier, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	supplierID, err := parseID(id, "supplier")
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			return nil, err
		}
	}

	var supplier *model.Supplier
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		supplier, err = s.repo.FindByID(txCtx, supplierID)
		if err != nil {
			return notFoundOr(err, "supplier")
		}

		if req.Name != nil {
			supplier.Name = strings.TrimSpace(*req.Name)
		}
		if req.ContactPerson != nil {
			supplier.ContactPerson = *req.ContactPerson
		}
		if req.Phone != nil {
			supplier.Phone = *req.Phone
		}
		if req.Email != nil {
			supplier.Email = *req.Email
		}
		if req.Address != nil {
			supplier.Address = *req.Address
		}
		if req.IsActive != nil {
			supplier.IsActive = *req.IsActive
		}

		if err := s.repo.Update(txCtx, supplier); err != nil {
			return fmt.Errorf("failed to update supplier: %w", err)
		}
		audit := newAudit(actor, model.ActionUpdateSupplier, supplier.ID.String(), supplier.Name, req)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return supplier, nil
}

func (s *supplierService) Delete(ctx context.Context, actor Actor, id string) error {
	supplierID, err := parseID(id, "supplier")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		supplier, err := s.repo.FindByID(txCtx, supplierID)
		if err != nil {
			return notFoundOr(err, "supplier")
		}
		if err := s.repo.Delete(txCtx, supplier.ID); err != nil {
			return fmt.Errorf("failed to delete supplier: %w", err)
		}
		audit := newAudit(actor, model.ActionDeleteSupplier, supplier.ID.String(), supplier.Name, nil)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
}
