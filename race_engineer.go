package livetiming

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"justapengu.in/livetiming/internal/telemetry"
	"justapengu.in/livetiming/pkg/laptiming"
	"justapengu.in/livetiming/pkg/udp"
)

type AlertPriority int

const (
	AlertPriorityLow AlertPriority = iota + 1
	AlertPriorityMedium
	AlertPriorityHigh
	AlertPriorityCritical
)

var alertPriorityNames = map[AlertPriority]string{
	AlertPriorityLow:      "low",
	AlertPriorityMedium:   "medium",
	AlertPriorityHigh:     "high",
	AlertPriorityCritical: "critical",
}

func (p AlertPriority) String() string {
	if name, ok := alertPriorityNames[p]; ok {
		return name
	}

	return fmt.Sprintf("priority_%d", int(p))
}

func (p AlertPriority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *AlertPriority) UnmarshalText(b []byte) error {
	for priority, name := range alertPriorityNames {
		if name == string(b) {
			*p = priority
			return nil
		}
	}

	return errors.Errorf("unknown alert priority %q", string(b))
}

type AlertCategory string

const (
	AlertCategoryTyre        AlertCategory = "tyre"
	AlertCategoryBrakes      AlertCategory = "brakes"
	AlertCategoryEngine      AlertCategory = "engine"
	AlertCategoryFuel        AlertCategory = "fuel"
	AlertCategoryStrategy    AlertCategory = "strategy"
	AlertCategoryPerformance AlertCategory = "performance"
)

// Alert is a message from the race engineer to the player.
type Alert struct {
	Message  string        `json:"Message"`
	Priority AlertPriority `json:"Priority"`
	Category AlertCategory `json:"Category"`
	Time     time.Time     `json:"Time"`

	// alerts with the same key are not repeated within their interval
	key      string
	interval time.Duration
}

type RaceEngineerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	TyreTemperatureWarning   uint8   `json:"tyre_temperature_warning" yaml:"tyre_temperature_warning"`
	TyreTemperatureCritical  uint8   `json:"tyre_temperature_critical" yaml:"tyre_temperature_critical"`
	BrakeTemperatureWarning  uint16  `json:"brake_temperature_warning" yaml:"brake_temperature_warning"`
	EngineTemperatureWarning uint16  `json:"engine_temperature_warning" yaml:"engine_temperature_warning"`
	FuelWarningLaps          float32 `json:"fuel_warning_laps" yaml:"fuel_warning_laps"`
	FuelCriticalLaps         float32 `json:"fuel_critical_laps" yaml:"fuel_critical_laps"`
	TyreAgeWarningLaps       uint8   `json:"tyre_age_warning_laps" yaml:"tyre_age_warning_laps"`
	TyreAgeCriticalLaps      uint8   `json:"tyre_age_critical_laps" yaml:"tyre_age_critical_laps"`

	SlowLapThreshold time.Duration `json:"slow_lap_threshold" yaml:"slow_lap_threshold"`
	AlertInterval    time.Duration `json:"alert_interval" yaml:"alert_interval"`
	AdviceInterval   time.Duration `json:"advice_interval" yaml:"advice_interval"`
	HistoryWindow    time.Duration `json:"history_window" yaml:"history_window"`
}

func DefaultRaceEngineerConfig() RaceEngineerConfig {
	return RaceEngineerConfig{
		Enabled:                  true,
		TyreTemperatureWarning:   100,
		TyreTemperatureCritical:  110,
		BrakeTemperatureWarning:  700,
		EngineTemperatureWarning: 110,
		FuelWarningLaps:          3,
		FuelCriticalLaps:         1.5,
		TyreAgeWarningLaps:       20,
		TyreAgeCriticalLaps:      30,
		SlowLapThreshold:         2 * time.Second,
		AlertInterval:            5 * time.Second,
		AdviceInterval:           15 * time.Second,
		HistoryWindow:            5 * time.Minute,
	}
}

// withDefaults fills any zero threshold from DefaultRaceEngineerConfig.
func (c RaceEngineerConfig) withDefaults() RaceEngineerConfig {
	d := DefaultRaceEngineerConfig()

	if c.TyreTemperatureWarning == 0 {
		c.TyreTemperatureWarning = d.TyreTemperatureWarning
	}

	if c.TyreTemperatureCritical == 0 {
		c.TyreTemperatureCritical = d.TyreTemperatureCritical
	}

	if c.BrakeTemperatureWarning == 0 {
		c.BrakeTemperatureWarning = d.BrakeTemperatureWarning
	}

	if c.EngineTemperatureWarning == 0 {
		c.EngineTemperatureWarning = d.EngineTemperatureWarning
	}

	if c.FuelWarningLaps == 0 {
		c.FuelWarningLaps = d.FuelWarningLaps
	}

	if c.FuelCriticalLaps == 0 {
		c.FuelCriticalLaps = d.FuelCriticalLaps
	}

	if c.TyreAgeWarningLaps == 0 {
		c.TyreAgeWarningLaps = d.TyreAgeWarningLaps
	}

	if c.TyreAgeCriticalLaps == 0 {
		c.TyreAgeCriticalLaps = d.TyreAgeCriticalLaps
	}

	if c.SlowLapThreshold == 0 {
		c.SlowLapThreshold = d.SlowLapThreshold
	}

	if c.AlertInterval == 0 {
		c.AlertInterval = d.AlertInterval
	}

	if c.AdviceInterval == 0 {
		c.AdviceInterval = d.AdviceInterval
	}

	if c.HistoryWindow == 0 {
		c.HistoryWindow = d.HistoryWindow
	}

	return c
}

const (
	pitWindowTyreAgeLaps   = 25
	pitWindowFuelLaps      = 10
	fuelSavingFuelLaps     = 8
	fuelSavingTyreAgeLaps  = 15
	recentAlertsLimit      = 10
	recommendationLookback = 30 * time.Second
)

// wheel order of the telemetry arrays
var wheelNames = [4]string{"Rear Left", "Rear Right", "Front Left", "Front Right"}

// RaceEngineer watches the player's car and raises alerts for tyre, brake, engine and fuel problems,
// slow laps and pit strategy.
type RaceEngineer struct {
	config RaceEngineerConfig
	logger Logger

	history    []Alert
	lastRaised map[string]time.Time

	pitStatus udp.PitStatus
	drsActive bool
	status    *udp.CarStatus

	mutex sync.Mutex

	now func() time.Time
}

func NewRaceEngineer(config RaceEngineerConfig, logger Logger) *RaceEngineer {
	return &RaceEngineer{
		config:     config.withDefaults(),
		logger:     logger,
		lastRaised: make(map[string]time.Time),
		now:        time.Now,
	}
}

// Reset forgets all alerts, as at the start of a new session.
func (re *RaceEngineer) Reset() {
	re.mutex.Lock()
	defer re.mutex.Unlock()

	re.history = nil
	re.lastRaised = make(map[string]time.Time)
	re.pitStatus = telemetry.PitStatusNone
	re.drsActive = false
	re.status = nil
}

func (re *RaceEngineer) alert(key string, priority AlertPriority, category AlertCategory, format string, args ...interface{}) Alert {
	return Alert{
		Message:  fmt.Sprintf(format, args...),
		Priority: priority,
		Category: category,
		key:      key,
		interval: re.config.AlertInterval,
	}
}

// OnLap looks at the player's lap after it has been ingested by the tracker. car is nil for
// snapshots that did not come from the telemetry feed.
func (re *RaceEngineer) OnLap(car *udp.CarLapData, update laptiming.LapUpdate) []Alert {
	re.mutex.Lock()
	defer re.mutex.Unlock()

	var alerts []Alert

	if lap := update.CompletedLap; lap != nil && lap.DeltaToBest.Available {
		if slower := time.Duration(lap.DeltaToBest.Millis) * time.Millisecond; slower > re.config.SlowLapThreshold {
			alerts = append(alerts, re.alert(
				"slow_lap", AlertPriorityMedium, AlertCategoryPerformance,
				"Last lap %.1fs slower than personal best", slower.Seconds(),
			))
		}
	}

	if car != nil {
		if car.PitStatus != re.pitStatus && car.PitStatus != telemetry.PitStatusNone {
			alerts = append(alerts, re.alert(
				"pit_status/"+car.PitStatus.String(), AlertPriorityMedium, AlertCategoryStrategy,
				"Pit status: %s", car.PitStatus,
			))
		}

		re.pitStatus = car.PitStatus
	}

	return re.raise(alerts)
}

func (re *RaceEngineer) OnTelemetry(carTelemetry udp.CarTelemetry) []Alert {
	re.mutex.Lock()
	defer re.mutex.Unlock()

	re.drsActive = carTelemetry.DRS

	var alerts []Alert

	for i, wheel := range wheelNames {
		switch temperature := carTelemetry.TyresSurfaceTemp[i]; {
		case temperature > re.config.TyreTemperatureCritical:
			alerts = append(alerts, re.alert(
				"tyre_temperature_critical/"+wheel, AlertPriorityCritical, AlertCategoryTyre,
				"CRITICAL: %s tyre overheating at %d°C! Lift and coast!", wheel, temperature,
			))
		case temperature > re.config.TyreTemperatureWarning:
			alerts = append(alerts, re.alert(
				"tyre_temperature/"+wheel, AlertPriorityHigh, AlertCategoryTyre,
				"WARNING: %s tyre getting hot at %d°C", wheel, temperature,
			))
		}

		if temperature := carTelemetry.BrakesTemperature[i]; temperature > re.config.BrakeTemperatureWarning {
			alerts = append(alerts, re.alert(
				"brake_temperature/"+wheel, AlertPriorityMedium, AlertCategoryBrakes,
				"High brake temperature on %s: %d°C", wheel, temperature,
			))
		}
	}

	if carTelemetry.EngineTemperature > re.config.EngineTemperatureWarning {
		alerts = append(alerts, re.alert(
			"engine_temperature", AlertPriorityHigh, AlertCategoryEngine,
			"Engine temperature high: %d°C", carTelemetry.EngineTemperature,
		))
	}

	return re.raise(alerts)
}

func (re *RaceEngineer) OnStatus(status udp.CarStatus) []Alert {
	re.mutex.Lock()
	defer re.mutex.Unlock()

	re.status = &status

	var alerts []Alert

	fuelLaps := status.FuelRemainingLaps

	// no fuel data is sent in some session types
	hasFuel := status.FuelCapacity > 0

	switch {
	case !hasFuel:
	case fuelLaps < re.config.FuelCriticalLaps:
		alerts = append(alerts, re.alert(
			"fuel_critical", AlertPriorityCritical, AlertCategoryFuel,
			"CRITICAL: Only %.1f laps of fuel remaining!", fuelLaps,
		))
	case fuelLaps < re.config.FuelWarningLaps:
		alerts = append(alerts, re.alert(
			"fuel_low", AlertPriorityHigh, AlertCategoryFuel,
			"LOW FUEL: %.1f laps remaining", fuelLaps,
		))
	}

	switch age := status.TyresAgeLaps; {
	case age > re.config.TyreAgeCriticalLaps:
		alerts = append(alerts, re.alert(
			"tyre_wear", AlertPriorityMedium, AlertCategoryStrategy,
			"High tyre wear: %s tyres are %d laps old", status.TyreCompound, age,
		))
	case age > re.config.TyreAgeWarningLaps:
		alerts = append(alerts, re.alert(
			"tyre_degradation", AlertPriorityLow, AlertCategoryStrategy,
			"Tyre degradation: %s tyres at %d laps", status.TyreCompound, age,
		))
	}

	if status.DRSAllowed && !re.drsActive {
		alerts = append(alerts, re.alert("drs_available", AlertPriorityLow, AlertCategoryPerformance, "DRS available for next straight"))
	}

	if hasFuel && status.TyresAgeLaps > pitWindowTyreAgeLaps && fuelLaps > pitWindowFuelLaps {
		advice := re.alert(
			"pit_window", AlertPriorityMedium, AlertCategoryStrategy,
			"Pit window open: Tyres degrading, fuel sufficient for %.1f laps", fuelLaps,
		)
		advice.interval = re.config.AdviceInterval

		alerts = append(alerts, advice)
	}

	if hasFuel && fuelLaps < fuelSavingFuelLaps && status.TyresAgeLaps < fuelSavingTyreAgeLaps {
		advice := re.alert("fuel_saving", AlertPriorityHigh, AlertCategoryStrategy, "Consider fuel saving: Lift and coast on straights")
		advice.interval = re.config.AdviceInterval

		alerts = append(alerts, advice)
	}

	return re.raise(alerts)
}

// raise records and logs the alerts that are not still cooling down, and returns them.
// It must be called with the mutex held.
func (re *RaceEngineer) raise(alerts []Alert) []Alert {
	now := re.now()

	re.prune(now)

	var raised []Alert

	for _, alert := range alerts {
		if last, ok := re.lastRaised[alert.key]; ok && now.Sub(last) < alert.interval {
			continue
		}

		alert.Time = now
		re.lastRaised[alert.key] = now
		re.history = append(re.history, alert)

		raised = append(raised, alert)

		alertsRaisedMetric.WithLabelValues(string(alert.Category), alert.Priority.String()).Inc()

		entry := re.logger.WithField("category", alert.Category).WithField("priority", alert.Priority)

		if alert.Priority >= AlertPriorityHigh {
			entry.Warn(alert.Message)
		} else {
			entry.Info(alert.Message)
		}
	}

	return raised
}

func (re *RaceEngineer) prune(now time.Time) {
	cutoff := now.Add(-re.config.HistoryWindow)

	i := 0

	for i < len(re.history) && !re.history[i].Time.After(cutoff) {
		i++
	}

	re.history = re.history[i:]
}

type RaceEngineerSummary struct {
	Recent          []Alert               `json:"Recent"`
	Counts          map[AlertCategory]int `json:"Counts"`
	Priority        []Alert               `json:"Priority"`
	Recommendations []string              `json:"Recommendations"`
}

// Summary describes the alerts raised within the history window.
func (re *RaceEngineer) Summary() RaceEngineerSummary {
	re.mutex.Lock()
	defer re.mutex.Unlock()

	now := re.now()

	re.prune(now)

	summary := RaceEngineerSummary{
		Counts:          make(map[AlertCategory]int),
		Recent:          []Alert{},
		Priority:        []Alert{},
		Recommendations: []string{},
	}

	start := 0

	if len(re.history) > recentAlertsLimit {
		start = len(re.history) - recentAlertsLimit
	}

	summary.Recent = append(summary.Recent, re.history[start:]...)

	var tyresCritical, fuelCritical bool

	for _, alert := range re.history {
		summary.Counts[alert.Category]++

		if alert.Priority >= AlertPriorityHigh {
			summary.Priority = append(summary.Priority, alert)
		}

		if alert.Priority == AlertPriorityCritical && now.Sub(alert.Time) < recommendationLookback {
			switch alert.Category {
			case AlertCategoryTyre:
				tyresCritical = true
			case AlertCategoryFuel:
				fuelCritical = true
			}
		}
	}

	if tyresCritical {
		summary.Recommendations = append(summary.Recommendations, "Reduce pace to cool tyres", "Avoid aggressive cornering")
	}

	if fuelCritical {
		summary.Recommendations = append(summary.Recommendations, "Implement fuel saving mode", "Lift and coast before braking zones")
	}

	if re.status != nil && re.status.DRSAllowed {
		summary.Recommendations = append(summary.Recommendations, "DRS available - use on straights")
	}

	return summary
}
