package statussync

import (
	"testing"
	"time"

	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/stretchr/testify/suite"
)

type fixedRand struct{ n int }

func (r fixedRand) Intn(n int) int { return r.n }

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestBackoffDelay() {
	p := NewPlanner(DefaultPlannerConfig(), nil)
	s.Equal(5*time.Minute, p.BackoffDelay(1))
	s.Equal(15*time.Minute, p.BackoffDelay(2))
	s.Equal(30*time.Minute, p.BackoffDelay(3))
	s.Equal(60*time.Minute, p.BackoffDelay(4))
	s.Equal(60*time.Minute, p.BackoffDelay(100))
}

func (s *PlannerSuite) TestNextCheckDelay_Delivered() {
	p := NewPlanner(DefaultPlannerConfig(), fixedRand{})
	s.Equal(365*24*time.Hour, p.NextCheckDelay(models.ShipmentStatusDelivered))
}

func (s *PlannerSuite) TestNextCheckDelay_InTransit_UsesRand() {
	p := NewPlanner(DefaultPlannerConfig(), fixedRand{n: 0})
	s.Equal(30*time.Minute, p.NextCheckDelay(models.ShipmentStatusInTransit))

	p = NewPlanner(PlannerConfig{InTransitMinDelay: time.Minute, InTransitMaxDelay: time.Minute}, fixedRand{})
	s.Equal(time.Minute, p.NextCheckDelay(models.ShipmentStatusInTransit))
}

func (s *PlannerSuite) TestNextCheckDelay_Created() {
	p := NewPlanner(DefaultPlannerConfig(), fixedRand{})
	s.Equal(90*time.Minute, p.NextCheckDelay(models.ShipmentStatusCreated))
	s.Equal(90*time.Minute, p.NextCheckDelay("whatever"))
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
