// Package signal reduces batches of same-domain events into the summary
// statistics carried by a fraud profile. Each extractor is a pure function
// of its input and tolerates empty input. Batch summarization and
// single-event folding share one code path, so merging events one at a time
// produces exactly the statistics of a full rebuild.
package signal

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// SummarizeLogins builds the authentication baseline from a login batch.
func SummarizeLogins(events []domain.LoginEvent) domain.LoginProfile {
	p := domain.NewLoginProfile()
	for _, ev := range events {
		FoldLogin(&p, ev)
	}
	return p
}

// FoldLogin folds one login into the baseline.
func FoldLogin(p *domain.LoginProfile, ev domain.LoginEvent) {
	p.SampleCount++
	p.HourHistogram[ev.Timestamp.Hour()]++
	p.Devices.Add(ev.DeviceType)
	p.OSBrowsers.Add(ev.OSBrowser)
	p.IPs.Add(ev.IPAddress)
	p.Locations.Add(ev.Geolocation)
	p.Methods.Add(ev.LoginMethod)
	p.Channels.Add(ev.Channel)
}
