package demo

import (
	"math"
	"time"

	"github.com/horus-rt/horus/node"
	"github.com/horus-rt/horus/podlink"
	"github.com/horus-rt/horus/telemetry"
)

// imuPublisher writes a synthetic IMU sample via PodLink's bit-copy
// path every tick, with no serialization on the hot path.
type imuPublisher struct {
	link *podlink.PodLink[telemetry.IMUSample]
}

func newIMUPublisher(l *podlink.PodLink[telemetry.IMUSample]) *imuPublisher {
	return &imuPublisher{link: l}
}

func (p *imuPublisher) Name() string { return "imu-publisher" }

func (p *imuPublisher) Init(*node.Info) error { return nil }

func (p *imuPublisher) Tick(info *node.Info) error {
	t := float64(info.TickIndex) * 0.01
	return p.link.Send(telemetry.IMUSample{
		TimestampNs: time.Now().UnixNano(),
		AccelX:      math.Sin(t),
		AccelY:      math.Cos(t),
		AccelZ:      9.81,
		GyroX:       0,
		GyroY:       0,
		GyroZ:       t,
	})
}

func (p *imuPublisher) Shutdown(*node.Info) error { return p.link.Close() }

// imuSubscriber reads the latest IMU sample via PodLink's direct
// memory copy, with no allocation or decode step.
type imuSubscriber struct {
	link *podlink.PodLink[telemetry.IMUSample]
}

func newIMUSubscriber(l *podlink.PodLink[telemetry.IMUSample]) *imuSubscriber {
	return &imuSubscriber{link: l}
}

func (p *imuSubscriber) Name() string { return "imu-subscriber" }

func (p *imuSubscriber) Init(*node.Info) error { return nil }

func (p *imuSubscriber) Tick(info *node.Info) error {
	sample, ok, err := p.link.Recv()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	info.Metrics["imu_age_ms"] = float64(time.Now().UnixNano()-sample.TimestampNs) / 1e6
	return nil
}

func (p *imuSubscriber) Shutdown(*node.Info) error { return p.link.Close() }
