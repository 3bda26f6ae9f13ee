package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/elys-network/treasury-sim/internal/catalog"
	"github.com/elys-network/treasury-sim/internal/types"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Scenario is everything one simulation run needs: parameters plus the deal catalog.
type Scenario struct {
	Name       string                     `yaml:"name" json:"name"`
	Parameters types.SimulationParameters `yaml:"parameters" json:"parameters"`
	Deals      catalog.Catalog            `yaml:"deals" json:"deals"`
}

// DefaultScenario returns the built-in parameters and deal catalog.
func DefaultScenario() Scenario {
	params := DefaultSimulationParameters
	params.SimulatedTrades = append([]float64(nil), DefaultSimulationParameters.SimulatedTrades...)
	return Scenario{
		Name:       "default",
		Parameters: params,
		Deals:      catalog.DefaultDeals(),
	}
}

// LoadScenario reads a YAML scenario from path. An empty path returns DefaultScenario.
// Fields missing from the file keep their default values; a file without deals uses the
// default catalog.
func LoadScenario(path string) (Scenario, error) {
	if path == "" {
		log.Info().Msg("No scenario file configured, using built-in defaults.")
		return DefaultScenario(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to open scenario %s: %w", path, err)
	}
	defer f.Close()

	scenario, err := ParseScenario(f)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to load scenario %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Str("name", scenario.Name).
		Int("deals", len(scenario.Deals)).
		Int("months", scenario.Parameters.Months).
		Msg("Scenario loaded.")
	return scenario, nil
}

// ParseScenario decodes and validates a YAML scenario. Unknown keys are rejected.
func ParseScenario(r io.Reader) (Scenario, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Scenario{}, err
	}

	scenario := DefaultScenario()
	scenario.Deals = nil

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil && !errors.Is(err, io.EOF) {
		return Scenario{}, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}

	if len(scenario.Deals) == 0 {
		scenario.Deals = catalog.DefaultDeals()
	}
	scenario.Deals.AssignIDs()

	if err := scenario.Validate(); err != nil {
		return Scenario{}, err
	}
	return scenario, nil
}

// ApplyOverrides copies the environment overrides of cfg onto the scenario and
// re-validates it.
func (s *Scenario) ApplyOverrides(cfg AppConfig) error {
	if cfg.Months > 0 {
		log.Info().Int("from", s.Parameters.Months).Int("to", cfg.Months).Msg("Overriding scenario months from environment.")
		s.Parameters.Months = cfg.Months
	}
	if cfg.MonthlyPriceDrift != nil {
		log.Info().Float64("from", s.Parameters.MonthlyPriceDrift).Float64("to", *cfg.MonthlyPriceDrift).Msg("Overriding monthly price drift from environment.")
		s.Parameters.MonthlyPriceDrift = *cfg.MonthlyPriceDrift
	}
	return s.Validate()
}

// Validate checks the parameters, the catalog, and that the catalog fits the bond supply.
func (s Scenario) Validate() error {
	var errs []error
	if err := ValidateSimulationParameters(s.Parameters); err != nil {
		errs = append(errs, err)
	}
	if err := s.Deals.Validate(); err != nil {
		errs = append(errs, err)
	}
	if total := s.Deals.TotalBondAmount(); total > s.Parameters.BondTotalSupply {
		errs = append(errs, fmt.Errorf("%w: deals allocate %.2f bonds, supply is %.2f",
			types.ErrInvalidInput, total, s.Parameters.BondTotalSupply))
	}
	return errors.Join(errs...)
}
