package services

import (
	"context"
	"fmt"
	"time"
)

const defaultHealthTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthService struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthService(checks ...HealthCheck) *HealthService {
	return &HealthService{
		checks:  checks,
		timeout: defaultHealthTimeout,
	}
}

// Get runs every check and reports the first failure.
func (s *HealthService) Get() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}
