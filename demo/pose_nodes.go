package demo

import (
	"math"
	"time"

	"github.com/horus-rt/horus/link"
	"github.com/horus-rt/horus/node"
	"github.com/horus-rt/horus/telemetry"
)

// posePublisher writes a synthetic circular-motion pose to a Link
// producer every tick.
type posePublisher struct {
	link *link.Link[*telemetry.Pose]
}

func newPosePublisher(l *link.Link[*telemetry.Pose]) *posePublisher { return &posePublisher{link: l} }

func (p *posePublisher) Name() string { return "pose-publisher" }

func (p *posePublisher) Init(*node.Info) error { return nil }

func (p *posePublisher) Tick(info *node.Info) error {
	angle := float64(info.TickIndex) * 0.05
	pose := &telemetry.Pose{
		Seq:         info.TickIndex,
		X:           math.Cos(angle),
		Y:           math.Sin(angle),
		Theta:       angle,
		TimestampNs: time.Now().UnixNano(),
	}
	return p.link.Send(pose)
}

func (p *posePublisher) Shutdown(*node.Info) error { return p.link.Close() }

// poseSubscriber drains the Link consumer and surfaces the latest pose
// age as a tick metric.
type poseSubscriber struct {
	link *link.Link[*telemetry.Pose]
}

func newPoseSubscriber(l *link.Link[*telemetry.Pose]) *poseSubscriber {
	return &poseSubscriber{link: l}
}

func (p *poseSubscriber) Name() string { return "pose-subscriber" }

func (p *poseSubscriber) Init(*node.Info) error { return nil }

func (p *poseSubscriber) Tick(info *node.Info) error {
	pose, ok, err := p.link.Recv()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	info.Metrics["pose_age_ms"] = float64(time.Now().UnixNano()-pose.TimestampNs) / 1e6
	return nil
}

func (p *poseSubscriber) Shutdown(*node.Info) error { return p.link.Close() }
