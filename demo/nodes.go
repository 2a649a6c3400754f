// Package demo assembles a small fleet of nodes that exercise every
// channel kind (Link, Hub, PodLink) for cmd/horus-demo.
package demo

import (
	"fmt"
	"time"

	"github.com/horus-rt/horus/hub"
	"github.com/horus-rt/horus/link"
	"github.com/horus-rt/horus/node"
	"github.com/horus-rt/horus/podlink"
	"github.com/horus-rt/horus/runtime"
	"github.com/horus-rt/horus/scheduler"
	"github.com/horus-rt/horus/telemetry"
)

// HeartbeatInterval is the demo fleet's heartbeat cadence.
const HeartbeatInterval = time.Second

const (
	poseTopic = "demo.pose"
	scanTopic = "demo.scan"
	imuTopic  = "demo.imu"

	maxPosePayload = 128
	hubCapacity    = 64
)

// NodeSpec bundles a Node with the enrollment arguments Scheduler.Add
// expects.
type NodeSpec struct {
	Node     node.Node
	Priority int
	Logging  bool
	Opts     []scheduler.AddOption
}

// BuildNodes constructs the demo fleet: a Link producer/consumer pair
// over "demo.pose", a Hub publisher/subscriber pair over "demo.scan",
// and a PodLink producer/consumer pair over "demo.imu".
func BuildNodes(rt *runtime.Runtime) ([]NodeSpec, error) {
	poseProd, err := link.Producer[*telemetry.Pose](rt, poseTopic, maxPosePayload)
	if err != nil {
		return nil, fmt.Errorf("pose producer: %w", err)
	}
	poseCons, err := link.Consumer[*telemetry.Pose](rt, poseTopic, maxPosePayload, func() *telemetry.Pose { return &telemetry.Pose{} })
	if err != nil {
		return nil, fmt.Errorf("pose consumer: %w", err)
	}

	scanHub, err := hub.New[*telemetry.Pose](rt, scanTopic, hubCapacity, maxPosePayload, func() *telemetry.Pose { return &telemetry.Pose{} })
	if err != nil {
		return nil, fmt.Errorf("scan hub: %w", err)
	}
	scanSub := scanHub.Subscribe()

	imuProd, err := podlink.Producer[telemetry.IMUSample](rt, imuTopic)
	if err != nil {
		return nil, fmt.Errorf("imu producer: %w", err)
	}
	imuCons, err := podlink.Consumer[telemetry.IMUSample](rt, imuTopic)
	if err != nil {
		return nil, fmt.Errorf("imu consumer: %w", err)
	}

	return []NodeSpec{
		{Node: newPosePublisher(poseProd), Priority: 0, Logging: false, Opts: []scheduler.AddOption{scheduler.WCET(2 * time.Millisecond)}},
		{Node: newPoseSubscriber(poseCons), Priority: 1, Logging: false},
		{Node: newScanPublisher(scanHub), Priority: 0, Logging: false},
		{Node: newScanSubscriber(scanSub), Priority: 1, Logging: false},
		{Node: newIMUPublisher(imuProd), Priority: 0, Logging: false},
		{Node: newIMUSubscriber(imuCons), Priority: 1, Logging: false},
	}, nil
}
