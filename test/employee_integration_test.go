//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	repo "github.com/ogurasousui/personnel-records/internal/adapters/repository/postgres"
	"github.com/ogurasousui/personnel-records/internal/core/employee"
	"github.com/ogurasousui/personnel-records/internal/platform/config"
	pg "github.com/ogurasousui/personnel-records/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
)

const migrationsDir = "../assets/migrations"

type stubClock struct {
	now time.Time
}

func (s stubClock) Now() time.Time {
	return s.now
}

func setup(t *testing.T) *employee.Service {
	t.Helper()

	cfg, err := config.Load(configPathFromEnv())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if err := resetMigrations(cfg.Database.DSN(), migrationsDir); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	pool, err := pg.NewPool(context.Background(), cfg.Database)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	tx := repo.NewTransactionManager(pg.NewTransactionManager(pool))
	return employee.NewService(repo.NewEmployeeRepository(pool), stubClock{now: time.Now().UTC()}, tx)
}

func TestEmployeeCRUDIntegration(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	joined := time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)
	born := time.Date(1990, 5, 6, 0, 0, 0, 0, time.UTC)

	created, err := svc.RegisterEmployee(ctx, employee.RegisterEmployeeInput{
		Name:        "Integration",
		SSN:         "123-45-6789",
		Salary:      decimal.RequireFromString("4321.555"),
		JoiningDate: joined,
		BirthDate:   &born,
		Note:        "first",
	})
	if err != nil {
		t.Fatalf("RegisterEmployee error: %v", err)
	}
	if !created.Salary.Equal(decimal.RequireFromString("4321.56")) {
		t.Fatalf("expected rounded salary, got %s", created.Salary)
	}

	found, err := svc.GetEmployeeBySSN(ctx, "123-45-6789")
	if err != nil {
		t.Fatalf("GetEmployeeBySSN error: %v", err)
	}
	if found.ID != created.ID || found.BirthDate == nil || !found.BirthDate.Equal(born) {
		t.Fatalf("unexpected employee: %+v", found)
	}

	_, err = svc.RegisterEmployee(ctx, employee.RegisterEmployeeInput{
		Name:        "Duplicate",
		SSN:         "123-45-6789",
		Salary:      decimal.Zero,
		JoiningDate: joined,
	})
	if !errors.Is(err, employee.ErrSSNAlreadyExists) {
		t.Fatalf("expected ErrSSNAlreadyExists, got %v", err)
	}

	updated, err := svc.UpdateEmployee(ctx, employee.UpdateEmployeeInput{
		ID:          created.ID,
		Name:        "Integration Updated",
		SSN:         "987-65-4321",
		Salary:      decimal.RequireFromString("5000"),
		JoiningDate: joined,
	})
	if err != nil {
		t.Fatalf("UpdateEmployee error: %v", err)
	}
	if updated.SSN != "987-65-4321" || updated.BirthDate != nil || updated.Note != "" {
		t.Fatalf("update not applied: %+v", updated)
	}

	list, err := svc.ListEmployees(ctx)
	if err != nil {
		t.Fatalf("ListEmployees error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 employee, got %d", len(list))
	}

	if err := svc.DeleteEmployeeBySSN(ctx, "987-65-4321"); err != nil {
		t.Fatalf("DeleteEmployeeBySSN error: %v", err)
	}
	if err := svc.DeleteEmployeeBySSN(ctx, "987-65-4321"); err != nil {
		t.Fatalf("second DeleteEmployeeBySSN error: %v", err)
	}

	if _, err := svc.GetEmployee(ctx, created.ID); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestConcurrentRegisterIntegration(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.RegisterEmployee(ctx, employee.RegisterEmployeeInput{
				Name:        "Concurrent",
				SSN:         "RACE-1",
				Salary:      decimal.NewFromInt(1),
				JoiningDate: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			})
			switch {
			case err == nil:
				mu.Lock()
				successes++
				mu.Unlock()
			case errors.Is(err, employee.ErrSSNAlreadyExists), errors.Is(err, employee.ErrConcurrentModification):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one registration, got %d", successes)
	}
}

func resetMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func configPathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "../assets/local.yaml"
}
