package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/errors"
	"github.com/penguineer/SensorsReport/event"
	"github.com/penguineer/SensorsReport/metric"
	"github.com/penguineer/SensorsReport/provider/file"
	"github.com/penguineer/SensorsReport/provider/lmsensors"
)

// Provider retrieves current readings for the sensors it owns.
//
// Retrieve never returns an error. A provider that cannot produce data for
// some or all of its sensors logs the reason and returns a shorter slice,
// possibly empty. Close releases any resources the provider holds and is
// called exactly once during shutdown.
type Provider interface {
	// Name identifies the provider kind in logs and metrics.
	Name() string

	// Retrieve samples the current value of every owned sensor that is
	// available right now. Order follows the configured sensor order.
	Retrieve(ctx context.Context) []event.SensorDataEvent

	// Close releases provider resources.
	Close()
}

// Deps carries the shared dependencies for provider construction.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metric.Registry

	// Subsystem overrides the default lm-sensors CLI subsystem. Nil
	// selects the CLI implementation; tests inject a fake here.
	Subsystem lmsensors.Subsystem
}

// Build constructs the providers for the given sensor list. All lm-sensors
// entries share one hardware provider whose subsystem is initialized here;
// a subsystem initialization failure is fatal and aborts construction.
// File entries each get their own provider and never fail construction.
func Build(sensors []config.SensorConfig, deps Deps) ([]Provider, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	var hw []config.SensorConfig
	var files []config.SensorConfig
	for _, s := range sensors {
		switch s.ProviderKind() {
		case config.ProviderLmSensors:
			hw = append(hw, s)
		case config.ProviderFile:
			files = append(files, s)
		default:
			// Validation rejects unknown kinds before we get here.
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: sensor %q has no provider", errors.ErrInvalidConfig, s.Topic),
				"provider", "Build", "classify sensor")
		}
	}

	providers := make([]Provider, 0, len(files)+1)

	if len(hw) > 0 {
		p, err := lmsensors.NewProvider(lmsensors.Deps{
			Sensors:   hw,
			Subsystem: deps.Subsystem,
			Logger:    deps.Logger,
			Metrics:   deps.Metrics,
		})
		if err != nil {
			return nil, errors.WrapFatal(err, "provider", "Build", "initialize lm-sensors subsystem")
		}
		providers = append(providers, p)
	}

	if len(files) > 0 {
		fileMetrics := file.NewMetrics(deps.Metrics, deps.Logger)
		for i := range files {
			providers = append(providers, file.NewProvider(file.Deps{
				Sensor:  files[i],
				Logger:  deps.Logger,
				Metrics: fileMetrics,
			}))
		}
	}

	return providers, nil
}

// CloseAll closes every provider in reverse construction order.
func CloseAll(providers []Provider) {
	for i := len(providers) - 1; i >= 0; i-- {
		providers[i].Close()
	}
}
