// Package gen produces synthetic banking behavior data for demos, load
// testing, and profile seeding. Each synthetic user has stable habits, so
// generated histories converge to learnable baselines, and the generator
// can emit deliberate anomalies that break those habits.
package gen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	deviceTypes = []string{"Mobile", "Desktop", "Tablet"}
	osBrowsers  = []string{
		"Windows/Chrome",
		"Windows/Firefox",
		"Mac/Safari",
		"iOS/Safari",
		"Android/Chrome",
	}
	screenResolutions = []string{
		"1920x1080",
		"1366x768",
		"1440x900",
		"375x812",
		"414x896",
	}
	loginMethods     = []string{"Password", "2FA", "Biometric"}
	channels         = []string{"Web", "Mobile App", "Tablet App"}
	transactionTypes = []string{"Transfer", "Bill Payment", "Card Payment"}
	paymentMethods   = []string{"ACH", "Wire", "Card", "Zelle"}
	features         = []string{
		"Account Balance",
		"Transfer Money",
		"Bill Pay",
		"Card Management",
		"Statement Download",
	}
)

// Config controls generation.
type Config struct {
	NumUsers int
	Seed     int64
}

// DefaultConfig returns sensible generator defaults.
func DefaultConfig() Config {
	return Config{NumUsers: 100}
}

// habit is one synthetic user's behavioral baseline.
type habit struct {
	device      string
	osBrowser   string
	resolution  string
	loginMethod string
	channel     string
	location    string
	loginHour   int
	ipAddress   string

	meanAmount  float64
	amountDev   float64
	recipients  []string
	method      string
	txType      string

	meanDuration float64
	favorites    []string
}

// Generator produces synthetic behavioral events.
type Generator struct {
	cfg    Config
	rand   *rand.Rand
	habits map[string]*habit
	users  []string
}

// New returns a configured Generator. A zero seed derives one from the
// clock; a fixed seed makes the output reproducible.
func New(cfg Config) *Generator {
	if cfg.NumUsers <= 0 {
		cfg.NumUsers = DefaultConfig().NumUsers
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	g := &Generator{
		cfg:    cfg,
		rand:   rand.New(rand.NewSource(cfg.Seed)),
		habits: make(map[string]*habit, cfg.NumUsers),
	}

	for i := 0; i < cfg.NumUsers; i++ {
		userID := fmt.Sprintf("USER_%06d", i)
		g.users = append(g.users, userID)
		g.habits[userID] = g.newHabit()
	}

	return g
}

// Users returns the generated user ids.
func (g *Generator) Users() []string {
	return g.users
}

func (g *Generator) newHabit() *habit {
	recipients := make([]string, 2+g.rand.Intn(3))
	for i := range recipients {
		recipients[i] = fmt.Sprintf("RCP_%06d", g.rand.Intn(1000000))
	}

	favCount := 2 + g.rand.Intn(2)
	favorites := make([]string, 0, favCount)
	perm := g.rand.Perm(len(features))
	for _, idx := range perm[:favCount] {
		favorites = append(favorites, features[idx])
	}

	return &habit{
		device:       g.pick(deviceTypes),
		osBrowser:    g.pick(osBrowsers),
		resolution:   g.pick(screenResolutions),
		loginMethod:  g.pick(loginMethods),
		channel:      g.pick(channels),
		location:     fmt.Sprintf("%.4f,%.4f", g.lat(), g.lon()),
		loginHour:    g.rand.Intn(24),
		ipAddress:    g.ipv4(),
		meanAmount:   50 + g.rand.Float64()*450,
		amountDev:    10 + g.rand.Float64()*40,
		recipients:   recipients,
		method:       g.pick(paymentMethods),
		txType:       g.pick(transactionTypes),
		meanDuration: 300 + g.rand.Float64()*1500,
		favorites:    favorites,
	}
}

// Login generates a habitual login event for the user.
func (g *Generator) Login(userID string, at time.Time) domain.LoginEvent {
	h := g.habits[userID]
	ts := time.Date(at.Year(), at.Month(), at.Day(), h.loginHour, g.rand.Intn(60), g.rand.Intn(60), 0, time.UTC)
	return domain.LoginEvent{
		UserID:           userID,
		Timestamp:        ts,
		DeviceType:       h.device,
		OSBrowser:        h.osBrowser,
		ScreenResolution: h.resolution,
		IPAddress:        h.ipAddress,
		Geolocation:      h.location,
		LoginMethod:      h.loginMethod,
		Channel:          h.channel,
	}
}

// AnomalousLogin generates a login that breaks every habit at once:
// new device, new location, new method, odd hour.
func (g *Generator) AnomalousLogin(userID string, at time.Time) domain.LoginEvent {
	h := g.habits[userID]
	ev := g.Login(userID, at)
	ev.Timestamp = time.Date(at.Year(), at.Month(), at.Day(), (h.loginHour+12)%24, g.rand.Intn(60), 0, 0, time.UTC)
	ev.DeviceType = g.pickOther(deviceTypes, h.device)
	ev.OSBrowser = g.pickOther(osBrowsers, h.osBrowser)
	ev.Geolocation = fmt.Sprintf("%.4f,%.4f", g.lat(), g.lon())
	ev.IPAddress = g.ipv4()
	ev.LoginMethod = g.pickOther(loginMethods, h.loginMethod)
	return ev
}

// Session generates a habitual session event for the user.
func (g *Generator) Session(userID string, at time.Time) domain.SessionEvent {
	h := g.habits[userID]
	duration := h.meanDuration + g.rand.NormFloat64()*60
	if duration < 30 {
		duration = 30
	}

	pageCount := 3 + g.rand.Intn(len(features)-2)
	pages := make([]string, 0, pageCount)
	perm := g.rand.Perm(len(features))
	for _, idx := range perm[:pageCount] {
		pages = append(pages, features[idx])
	}

	return domain.SessionEvent{
		UserID:       userID,
		SessionID:    "SESS_" + uuid.New().String(),
		StartTime:    at,
		EndTime:      at.Add(time.Duration(duration) * time.Second),
		PagesVisited: pages,
	}
}

// Transaction generates a habitual transaction event for the user.
func (g *Generator) Transaction(userID string, at time.Time) domain.TransactionEvent {
	h := g.habits[userID]
	amount := h.meanAmount + g.rand.NormFloat64()*h.amountDev
	if amount < 1 {
		amount = 1
	}

	return domain.TransactionEvent{
		UserID:        userID,
		TransactionID: "TXN_" + uuid.New().String(),
		Type:          h.txType,
		Amount:        float64(int(amount*100)) / 100,
		Recipient:     g.pick(h.recipients),
		Method:        h.method,
		Timestamp:     at,
	}
}

// AnomalousTransaction generates a transaction far outside the user's
// amount baseline, to a new recipient over a new method.
func (g *Generator) AnomalousTransaction(userID string, at time.Time) domain.TransactionEvent {
	h := g.habits[userID]
	ev := g.Transaction(userID, at)
	ev.Amount = h.meanAmount*10 + g.rand.Float64()*h.meanAmount*10
	ev.Recipient = fmt.Sprintf("RCP_%06d", g.rand.Intn(1000000))
	ev.Method = g.pickOther(paymentMethods, h.method)
	return ev
}

// FeatureUsage generates a habitual feature usage event for the user.
func (g *Generator) FeatureUsage(userID string, at time.Time) domain.FeatureUsageEvent {
	h := g.habits[userID]
	return domain.FeatureUsageEvent{
		UserID:      userID,
		FeatureName: g.pick(h.favorites),
		Frequency:   int64(1 + g.rand.Intn(5)),
		Timestamps:  []time.Time{at},
	}
}

// History generates n days of habitual events for the user, oldest first.
func (g *Generator) History(userID string, days int) []domain.Event {
	var events []domain.Event
	now := time.Now().UTC()

	for d := days; d > 0; d-- {
		day := now.AddDate(0, 0, -d)
		events = append(events, g.Login(userID, day))
		events = append(events, g.Session(userID, day))
		if g.rand.Float64() < 0.7 {
			events = append(events, g.Transaction(userID, day))
		}
		if g.rand.Float64() < 0.5 {
			events = append(events, g.FeatureUsage(userID, day))
		}
	}

	return events
}

func (g *Generator) pick(vals []string) string {
	return vals[g.rand.Intn(len(vals))]
}

func (g *Generator) pickOther(vals []string, not string) string {
	for {
		v := g.pick(vals)
		if v != not {
			return v
		}
	}
}

func (g *Generator) ipv4() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		1+g.rand.Intn(223), g.rand.Intn(256), g.rand.Intn(256), 1+g.rand.Intn(254))
}

func (g *Generator) lat() float64 {
	return -90 + g.rand.Float64()*180
}

func (g *Generator) lon() float64 {
	return -180 + g.rand.Float64()*360
}
