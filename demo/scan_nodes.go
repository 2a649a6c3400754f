package demo

import (
	"time"

	"github.com/horus-rt/horus/hub"
	"github.com/horus-rt/horus/node"
	"github.com/horus-rt/horus/telemetry"
)

// scanPublisher fans a reading out to every Hub subscriber each tick,
// standing in for a multi-consumer sensor topic.
type scanPublisher struct {
	hub *hub.Hub[*telemetry.Pose]
}

func newScanPublisher(h *hub.Hub[*telemetry.Pose]) *scanPublisher { return &scanPublisher{hub: h} }

func (p *scanPublisher) Name() string { return "scan-publisher" }

func (p *scanPublisher) Init(*node.Info) error { return nil }

func (p *scanPublisher) Tick(info *node.Info) error {
	return p.hub.Send(&telemetry.Pose{Seq: info.TickIndex, TimestampNs: time.Now().UnixNano()})
}

func (p *scanPublisher) Shutdown(*node.Info) error { return p.hub.Close() }

// scanSubscriber drains its Hub subscriber cursor and tracks how many
// messages it has been forced to drop by a lapping writer.
type scanSubscriber struct {
	sub *hub.Subscriber[*telemetry.Pose]
}

func newScanSubscriber(s *hub.Subscriber[*telemetry.Pose]) *scanSubscriber {
	return &scanSubscriber{sub: s}
}

func (s *scanSubscriber) Name() string { return "scan-subscriber" }

func (s *scanSubscriber) Init(*node.Info) error { return nil }

func (s *scanSubscriber) Tick(info *node.Info) error {
	for {
		_, ok, err := s.sub.Recv()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	info.Metrics["scan_dropped_total"] = float64(s.sub.Dropped())
	return nil
}

func (s *scanSubscriber) Shutdown(*node.Info) error { return nil }
