package livetiming

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"justapengu.in/livetiming/internal/telemetry"
	"justapengu.in/livetiming/pkg/laptiming"
	"justapengu.in/livetiming/pkg/udp"
)

func newTestRaceEngineer() (*RaceEngineer, *time.Time) {
	now := testTime

	re := NewRaceEngineer(DefaultRaceEngineerConfig(), testLogger())
	re.now = func() time.Time {
		return now
	}

	return re, &now
}

func checkAlerts(t *testing.T, alerts []Alert, expected []Alert) {
	t.Helper()

	if len(alerts) != len(expected) {
		t.Fatalf("expected %d alerts, got %d: %+v", len(expected), len(alerts), alerts)
	}

	for i, alert := range alerts {
		if alert.Priority != expected[i].Priority || alert.Category != expected[i].Category || !strings.Contains(alert.Message, expected[i].Message) {
			t.Errorf("alert %d: expected %s/%s %q, got %s/%s %q", i, expected[i].Priority, expected[i].Category, expected[i].Message, alert.Priority, alert.Category, alert.Message)
		}

		if !alert.Time.Equal(testTime) {
			t.Errorf("alert %d: expected time %s, got %s", i, testTime, alert.Time)
		}
	}
}

func TestRaceEngineerTelemetryAlerts(t *testing.T) {
	telemetryTests := []struct {
		name      string
		telemetry udp.CarTelemetry
		expected  []Alert
	}{
		{
			name: "all within limits",
			telemetry: udp.CarTelemetry{
				TyresSurfaceTemp:  [4]uint8{95, 95, 98, 100},
				BrakesTemperature: [4]uint16{500, 500, 650, 700},
				EngineTemperature: 105,
			},
		},
		{
			name:      "tyre getting hot",
			telemetry: udp.CarTelemetry{TyresSurfaceTemp: [4]uint8{0, 0, 105, 0}},
			expected:  []Alert{{Priority: AlertPriorityHigh, Category: AlertCategoryTyre, Message: "Front Left tyre getting hot at 105°C"}},
		},
		{
			name:      "tyre overheating",
			telemetry: udp.CarTelemetry{TyresSurfaceTemp: [4]uint8{0, 0, 0, 112}},
			expected:  []Alert{{Priority: AlertPriorityCritical, Category: AlertCategoryTyre, Message: "Front Right tyre overheating at 112°C"}},
		},
		{
			name:      "brakes",
			telemetry: udp.CarTelemetry{BrakesTemperature: [4]uint16{720, 0, 0, 0}},
			expected:  []Alert{{Priority: AlertPriorityMedium, Category: AlertCategoryBrakes, Message: "High brake temperature on Rear Left: 720°C"}},
		},
		{
			name:      "engine",
			telemetry: udp.CarTelemetry{EngineTemperature: 115},
			expected:  []Alert{{Priority: AlertPriorityHigh, Category: AlertCategoryEngine, Message: "Engine temperature high: 115°C"}},
		},
	}

	for _, test := range telemetryTests {
		t.Run(test.name, func(t *testing.T) {
			re, _ := newTestRaceEngineer()

			checkAlerts(t, re.OnTelemetry(test.telemetry), test.expected)
		})
	}
}

func TestRaceEngineerStatusAlerts(t *testing.T) {
	statusTests := []struct {
		name     string
		status   udp.CarStatus
		expected []Alert
	}{
		{
			name:   "no fuel data",
			status: udp.CarStatus{TyresAgeLaps: 3},
		},
		{
			name:     "low fuel",
			status:   udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 2.5, TyresAgeLaps: 16},
			expected: []Alert{{Priority: AlertPriorityHigh, Category: AlertCategoryFuel, Message: "LOW FUEL: 2.5 laps remaining"}},
		},
		{
			name:     "fuel critical",
			status:   udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 1.2, TyresAgeLaps: 16},
			expected: []Alert{{Priority: AlertPriorityCritical, Category: AlertCategoryFuel, Message: "Only 1.2 laps of fuel remaining"}},
		},
		{
			name:     "tyre degradation",
			status:   udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 9, TyreCompound: telemetry.TyreCompoundSoft, TyresAgeLaps: 21},
			expected: []Alert{{Priority: AlertPriorityLow, Category: AlertCategoryStrategy, Message: "Tyre degradation: Soft tyres at 21 laps"}},
		},
		{
			name:   "pit window",
			status: udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 12, TyreCompound: telemetry.TyreCompoundMedium, TyresAgeLaps: 31},
			expected: []Alert{
				{Priority: AlertPriorityMedium, Category: AlertCategoryStrategy, Message: "High tyre wear: Medium tyres are 31 laps old"},
				{Priority: AlertPriorityMedium, Category: AlertCategoryStrategy, Message: "Pit window open: Tyres degrading, fuel sufficient for 12.0 laps"},
			},
		},
		{
			name:     "fuel saving",
			status:   udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 6, TyresAgeLaps: 5},
			expected: []Alert{{Priority: AlertPriorityHigh, Category: AlertCategoryStrategy, Message: "Consider fuel saving"}},
		},
		{
			name:     "drs",
			status:   udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 9, TyresAgeLaps: 16, DRSAllowed: true},
			expected: []Alert{{Priority: AlertPriorityLow, Category: AlertCategoryPerformance, Message: "DRS available for next straight"}},
		},
	}

	for _, test := range statusTests {
		t.Run(test.name, func(t *testing.T) {
			re, _ := newTestRaceEngineer()

			checkAlerts(t, re.OnStatus(test.status), test.expected)
		})
	}

	t.Run("drs already open", func(t *testing.T) {
		re, _ := newTestRaceEngineer()

		re.OnTelemetry(udp.CarTelemetry{DRS: true})

		checkAlerts(t, re.OnStatus(udp.CarStatus{DRSAllowed: true}), nil)
	})
}

func TestRaceEngineerLapAlerts(t *testing.T) {
	completed := func(delta laptiming.Delta) laptiming.LapUpdate {
		return laptiming.LapUpdate{CompletedLap: &laptiming.LapHistoryEntry{LapNumber: 3, LapTime: 92500, DeltaToBest: delta}}
	}

	lapTests := []struct {
		name     string
		car      *udp.CarLapData
		update   laptiming.LapUpdate
		expected []Alert
	}{
		{
			name:     "slow lap",
			update:   completed(laptiming.Delta{Millis: 2500, Available: true}),
			expected: []Alert{{Priority: AlertPriorityMedium, Category: AlertCategoryPerformance, Message: "Last lap 2.5s slower than personal best"}},
		},
		{
			name:   "within threshold",
			update: completed(laptiming.Delta{Millis: 1500, Available: true}),
		},
		{
			name:   "new best",
			update: completed(laptiming.Delta{Millis: -2500, Available: true}),
		},
		{
			name:   "first lap",
			update: completed(laptiming.Delta{}),
		},
		{
			name:     "pitting",
			car:      &udp.CarLapData{PitStatus: telemetry.PitStatusPitting},
			expected: []Alert{{Priority: AlertPriorityMedium, Category: AlertCategoryStrategy, Message: "Pit status: Pitting"}},
		},
		{
			name: "on track",
			car:  &udp.CarLapData{PitStatus: telemetry.PitStatusNone},
		},
	}

	for _, test := range lapTests {
		t.Run(test.name, func(t *testing.T) {
			re, _ := newTestRaceEngineer()

			checkAlerts(t, re.OnLap(test.car, test.update), test.expected)
		})
	}

	t.Run("pit status changes only", func(t *testing.T) {
		re, now := newTestRaceEngineer()

		var messages []string

		for _, status := range []telemetry.PitStatus{telemetry.PitStatusPitting, telemetry.PitStatusPitting, telemetry.PitStatusInPits, telemetry.PitStatusNone, telemetry.PitStatusPitting} {
			*now = now.Add(10 * time.Second)

			for _, alert := range re.OnLap(&udp.CarLapData{PitStatus: status}, laptiming.LapUpdate{}) {
				messages = append(messages, alert.Message)
			}
		}

		expected := []string{"Pit status: Pitting", "Pit status: In Pit Area", "Pit status: Pitting"}

		if strings.Join(messages, "|") != strings.Join(expected, "|") {
			t.Errorf("expected %v, got %v", expected, messages)
		}
	})
}

func TestRaceEngineerAlertIntervals(t *testing.T) {
	re, now := newTestRaceEngineer()

	hot := udp.CarTelemetry{EngineTemperature: 120}

	if alerts := re.OnTelemetry(hot); len(alerts) != 1 {
		t.Fatalf("expected an alert, got %+v", alerts)
	}

	*now = now.Add(2 * time.Second)

	if alerts := re.OnTelemetry(hot); len(alerts) != 0 {
		t.Errorf("alert should not repeat within the interval, got %+v", alerts)
	}

	*now = now.Add(4 * time.Second)

	if alerts := re.OnTelemetry(hot); len(alerts) != 1 {
		t.Errorf("alert should repeat after the interval, got %+v", alerts)
	}

	status := udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 12, TyresAgeLaps: 31}

	if alerts := re.OnStatus(status); len(alerts) != 2 {
		t.Fatalf("expected tyre wear and pit window alerts, got %+v", alerts)
	}

	*now = now.Add(6 * time.Second)

	alerts := re.OnStatus(status)

	if len(alerts) != 1 || !strings.Contains(alerts[0].Message, "High tyre wear") {
		t.Errorf("pit window advice should wait for the advice interval, got %+v", alerts)
	}
}

func TestRaceEngineerSummary(t *testing.T) {
	re, now := newTestRaceEngineer()

	re.OnTelemetry(udp.CarTelemetry{TyresSurfaceTemp: [4]uint8{115, 0, 0, 0}, EngineTemperature: 120})
	re.OnStatus(udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 1, TyresAgeLaps: 16, DRSAllowed: true})

	summary := re.Summary()

	expectedCounts := map[AlertCategory]int{
		AlertCategoryTyre:        1,
		AlertCategoryEngine:      1,
		AlertCategoryFuel:        1,
		AlertCategoryPerformance: 1,
	}

	if len(summary.Counts) != len(expectedCounts) {
		t.Errorf("expected counts %v, got %v", expectedCounts, summary.Counts)
	}

	for category, count := range expectedCounts {
		if summary.Counts[category] != count {
			t.Errorf("%s: expected %d alerts, got %d", category, count, summary.Counts[category])
		}
	}

	if len(summary.Priority) != 3 {
		t.Errorf("expected tyre, engine and fuel priority alerts, got %+v", summary.Priority)
	}

	expectedRecommendations := []string{
		"Reduce pace to cool tyres",
		"Avoid aggressive cornering",
		"Implement fuel saving mode",
		"Lift and coast before braking zones",
		"DRS available - use on straights",
	}

	if strings.Join(summary.Recommendations, "|") != strings.Join(expectedRecommendations, "|") {
		t.Errorf("expected recommendations %v, got %v", expectedRecommendations, summary.Recommendations)
	}

	*now = now.Add(time.Minute)

	if summary := re.Summary(); len(summary.Recommendations) != 1 || len(summary.Recent) != 4 {
		t.Errorf("critical recommendations should expire, got %+v", summary)
	}

	*now = now.Add(5 * time.Minute)

	if summary := re.Summary(); len(summary.Recent) != 0 || len(summary.Counts) != 0 {
		t.Errorf("alerts older than the history window should be dropped, got %+v", summary)
	}

	re.OnTelemetry(udp.CarTelemetry{EngineTemperature: 120})
	re.Reset()

	if summary := re.Summary(); len(summary.Recent) != 0 || len(summary.Recommendations) != 0 {
		t.Errorf("expected an empty summary after a reset, got %+v", summary)
	}
}

func TestRaceEngineerRecentAlertsLimit(t *testing.T) {
	re, _ := newTestRaceEngineer()

	// every wheel over both tyre and brake limits, plus the engine
	re.OnTelemetry(udp.CarTelemetry{
		TyresSurfaceTemp:  [4]uint8{105, 105, 105, 105},
		BrakesTemperature: [4]uint16{800, 800, 800, 800},
		EngineTemperature: 120,
	})
	re.OnStatus(udp.CarStatus{FuelCapacity: 110, FuelRemainingLaps: 2, TyresAgeLaps: 16, DRSAllowed: true})

	summary := re.Summary()

	if len(summary.Recent) != recentAlertsLimit {
		t.Fatalf("expected %d recent alerts, got %d", recentAlertsLimit, len(summary.Recent))
	}

	if summary.Counts[AlertCategoryTyre] != 4 || summary.Counts[AlertCategoryBrakes] != 4 {
		t.Errorf("counts should cover every alert in the window, got %v", summary.Counts)
	}

	if last := summary.Recent[len(summary.Recent)-1]; last.Category != AlertCategoryPerformance {
		t.Errorf("expected the most recent alert last, got %+v", last)
	}
}

func TestAlertJSON(t *testing.T) {
	b, err := json.Marshal(Alert{Message: "Engine temperature high: 120°C", Priority: AlertPriorityHigh, Category: AlertCategoryEngine, Time: testTime})

	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}

	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded["Priority"] != "high" || decoded["Category"] != "engine" {
		t.Errorf("unexpected alert JSON: %s", b)
	}

	var alert Alert

	if err := json.Unmarshal(b, &alert); err != nil || alert.Priority != AlertPriorityHigh {
		t.Errorf("expected priority to decode, got %s (%v)", alert.Priority, err)
	}
}

func TestLiveTimingRaceEngineer(t *testing.T) {
	lt, broadcaster := newTestLiveTiming(LiveTimingConfig{RaceEngineer: DefaultRaceEngineerConfig()})

	lt.UDPCallback(udp.NewSession{SessionUID: 1, PlayerCarIndex: 1})

	lt.UDPCallback(udp.LapData{
		PlayerCarIndex: 1,
		Cars: []*udp.CarLapData{
			carLapData(0, 1, laptiming.LapSnapshot{CurrentLapNumber: 2, LastLapTime: 90000}),
			carLapData(1, 2, laptiming.LapSnapshot{CurrentLapNumber: 2, LastLapTime: 90000}),
		},
	})

	lt.UDPCallback(udp.LapData{
		PlayerCarIndex: 1,
		Cars: []*udp.CarLapData{
			// other cars never get alerts
			carLapData(0, 1, laptiming.LapSnapshot{CurrentLapNumber: 3, LastLapTime: 95000}),
			carLapData(1, 2, laptiming.LapSnapshot{CurrentLapNumber: 3, LastLapTime: 93000}),
		},
	})

	lt.UDPCallback(udp.Telemetry{
		PlayerCarIndex: 1,
		Cars:           []udp.CarTelemetry{{CarIndex: 0, EngineTemperature: 130}, {CarIndex: 1, EngineTemperature: 90}},
	})

	lt.UDPCallback(udp.Status{
		PlayerCarIndex: 1,
		Cars:           []udp.CarStatus{{CarIndex: 0}, {CarIndex: 1, FuelCapacity: 110, FuelRemainingLaps: 1, TyresAgeLaps: 16}},
	})

	alerts := broadcaster.ofType(messageTypeAlert)

	if len(alerts) != 2 {
		t.Fatalf("expected slow lap and fuel alerts, got %+v", alerts)
	}

	if alert := alerts[0].Body.(Alert); alert.Message != "Last lap 3.0s slower than personal best" {
		t.Errorf("unexpected lap alert: %+v", alert)
	}

	if alert := alerts[1].Body.(Alert); alert.Category != AlertCategoryFuel || alert.Priority != AlertPriorityCritical {
		t.Errorf("unexpected fuel alert: %+v", alert)
	}

	if updates := broadcaster.ofType(messageTypeCarStatusUpdate); len(updates) != 1 || updates[0].Body.(*udp.CarStatus).CarIndex != 1 {
		t.Errorf("expected the player's car status to be broadcast, got %+v", updates)
	}

	if driver, _ := lt.Drivers.Get(1); driver.Data().Status == nil {
		t.Errorf("expected car status to be stored on the driver")
	}

	summary, ok := lt.RaceEngineerSummary()

	if !ok || len(summary.Recent) != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	lt.UDPCallback(udp.NewSession{SessionUID: 2, PlayerCarIndex: 1})

	if summary, _ := lt.RaceEngineerSummary(); len(summary.Recent) != 0 {
		t.Errorf("a new session should clear the race engineer, got %+v", summary)
	}
}

func TestHTTPRaceEngineer(t *testing.T) {
	_, _, disabled := newTestServer(t)

	resp, err := http.Get(disabled.URL + "/api/race-engineer")

	if err != nil {
		t.Fatal(err)
	}

	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 with the race engineer disabled, got %d", resp.StatusCode)
	}

	hub := NewHub(testLogger())
	lt := NewLiveTiming(LiveTimingConfig{RaceEngineer: DefaultRaceEngineerConfig()}, hub, testLogger())
	server := httptest.NewServer(NewHTTP(HTTPConfig{}, lt, hub, nil, testLogger()).Router())

	defer func() {
		hub.Close()
		server.Close()
	}()

	lt.UDPCallback(udp.Telemetry{Cars: []udp.CarTelemetry{{CarIndex: 0, EngineTemperature: 120}}})

	resp, err = http.Get(server.URL + "/api/race-engineer")

	if err != nil {
		t.Fatal(err)
	}

	defer resp.Body.Close()

	var summary RaceEngineerSummary

	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}

	if len(summary.Recent) != 1 || summary.Recent[0].Category != AlertCategoryEngine || summary.Counts[AlertCategoryEngine] != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}
