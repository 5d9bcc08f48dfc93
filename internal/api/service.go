/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package api

import (
	"context"
	"errors"
	"fmt"

	"commission-ledger-go/internal/commission"
	"commission-ledger-go/internal/store"
)

// ErrInvalidRequest marks input rejected before it reaches the ledger
var ErrInvalidRequest = errors.New("invalid request")

// LedgerService is the API surface over the commission engine shared by the HTTP server and CLIs
type LedgerService struct {
	engine     *commission.Engine
	store      store.LedgerStore
	maturation commission.MatureParams
}

// NewLedgerService builds the service. maturation holds the default batch bounds
// applied when a caller does not set its own.
func NewLedgerService(engine *commission.Engine, maturation commission.MatureParams) *LedgerService {
	return &LedgerService{
		engine:     engine,
		store:      engine.Store(),
		maturation: maturation,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
		return nil
	}
	if _, err := s.store.GetAffiliates(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
