package services

import (
	"fmt"
	"strings"
	"time"

	"cloudvps-backend/internal/models"
)

const maxInstanceName = 24

type InstancesResponse struct {
	SelectedID string               `json:"selected_id"`
	Running    int                  `json:"running"`
	Instances  []models.VpsInstance `json:"instances"`
}

func (e *Engine) Instances(userID string) (*InstancesResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}

	resp := &InstancesResponse{
		SelectedID: s.Vps.SelectedID,
		Running:    s.Vps.CountRunning(),
		Instances:  make([]models.VpsInstance, 0, len(s.Vps.Instances)),
	}
	for _, inst := range s.Vps.Instances {
		resp.Instances = append(resp.Instances, copyInstance(inst))
	}
	return resp, nil
}

func copyInstance(inst *models.VpsInstance) models.VpsInstance {
	c := *inst
	c.History.CPU = append([]float64(nil), inst.History.CPU...)
	c.History.TS = append([]int64(nil), inst.History.TS...)
	return c
}

// target resolves an explicit instance id or falls back to the selection.
func (e *Engine) target(s *models.UserGameState, id string) (*models.VpsInstance, error) {
	if id == "" {
		inst := s.Vps.Selected()
		if inst == nil {
			return nil, ErrNoInstanceSelected
		}
		return inst, nil
	}
	inst := s.Vps.Find(id)
	if inst == nil {
		return nil, ErrInstanceNotFound
	}
	return inst, nil
}

// CreateInstance debits the plan cost and inserts a provisioning
// instance. It turns running (or stopped when the running slot is taken)
// after the simulated delay.
func (e *Engine) CreateInstance(userID string, req models.CreateInstanceRequest) (*models.VpsInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	if len(s.Vps.Instances) >= models.MaxInstances {
		return nil, ErrMaxInstances
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "my-vps"
	}
	if r := []rune(name); len(r) > maxInstanceName {
		name = string(r[:maxInstanceName])
	}
	if req.Plan == "" {
		req.Plan = "free"
	}
	if req.Region == "" {
		req.Region = models.Regions[0]
	}
	if req.Image == "" {
		req.Image = models.Images[0].ID
	}
	if _, ok := models.Plans[req.Plan]; !ok || !models.ValidRegion(req.Region) || !models.ValidImage(req.Image) {
		return nil, ErrInvalidInstance
	}
	hours := req.Hours
	if hours == 0 {
		hours = 6
	}
	hours = models.ClampHours(hours)

	cost := models.InstanceCost(req.Plan, hours)
	if err := e.ensureEnoughPoints(s, cost); err != nil {
		return nil, err
	}

	now := e.now()
	e.provisionGen++
	inst := &models.VpsInstance{
		ID:           models.NewID("vps"),
		Name:         name,
		Plan:         req.Plan,
		Region:       req.Region,
		Image:        req.Image,
		Status:       models.StatusProvisioning,
		TimeLeftSec:  hours * 3600,
		LastTickMs:   now.UnixMilli(),
		History:      models.MetricsHistory{CPU: []float64{}, TS: []int64{}},
		ProvisionGen: e.provisionGen,
	}
	s.Vps.Instances = append([]*models.VpsInstance{inst}, s.Vps.Instances...)
	s.Vps.SelectedID = inst.ID
	s.Stats.VpsCreated++

	e.addPoints(userID, s, -cost, fmt.Sprintf("Redeemed VPS (%dh)", hours), models.LedgerSpend,
		map[string]interface{}{"kind": "redeem", "plan": req.Plan, "hours": hours})
	e.notify(userID, s, "info", "Provisioning VPS…",
		fmt.Sprintf("%s (%s)", inst.Name, models.PlanSpec(req.Plan).Label))

	e.scheduleProvisioning(userID, inst.ID, inst.ProvisionGen)
	e.commit(userID, "instance")

	c := copyInstance(inst)
	return &c, nil
}

// scheduleProvisioning arms the completion timer. Callers hold e.mu.
func (e *Engine) scheduleProvisioning(userID, instID string, gen int64) {
	if t, ok := e.timers[instID]; ok {
		t.Stop()
	}
	d := e.randomDelayLocked(0, 0)
	e.timers[instID] = time.AfterFunc(d, func() {
		e.completeProvisioning(userID, instID, gen)
	})
}

// resumeProvisioning re-arms timers for instances that were still
// provisioning when the document was stored. Callers hold e.mu.
func (e *Engine) resumeProvisioning() {
	for userID, s := range e.doc.PerUser {
		if s == nil {
			continue
		}
		e.resumeUserProvisioning(userID, s)
	}
}

func (e *Engine) resumeUserProvisioning(userID string, s *models.UserGameState) {
	for _, inst := range s.Vps.Instances {
		if inst.Status != models.StatusProvisioning {
			continue
		}
		e.provisionGen++
		inst.ProvisionGen = e.provisionGen
		e.scheduleProvisioning(userID, inst.ID, inst.ProvisionGen)
	}
}

// completeProvisioning applies a finished provisioning only if the
// instance still exists, is still provisioning and carries the same
// generation; anything else means it was destroyed or replaced meanwhile.
func (e *Engine) completeProvisioning(userID, instID string, gen int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.timers, instID)

	s, ok := e.doc.PerUser[userID]
	if !ok || s == nil {
		return
	}
	inst := s.Vps.Find(instID)
	if inst == nil || inst.Status != models.StatusProvisioning || inst.ProvisionGen != gen {
		return
	}
	e.normalizeDaily(s)

	now := e.now()
	inst.ProvisionGen = 0
	inst.CreatedAt = now.UnixMilli()
	inst.LastTickMs = now.UnixMilli()
	inst.IPv4 = models.RandomIPv4(e.rng)
	inst.Hostname = models.RandomHostname(e.rng)

	if s.Vps.CountRunning() < models.MaxRunning {
		inst.Status = models.StatusRunning
		e.notify(userID, s, "good", "VPS running", fmt.Sprintf("%s is live.", inst.Name))
	} else {
		inst.Status = models.StatusStopped
		e.notify(userID, s, "warn", "VPS created (paused)", "Stop the running instance to start this one.")
	}
	e.commit(userID, "provisioned")
}

func (e *Engine) SelectInstance(userID, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return err
	}
	if s.Vps.Find(id) == nil {
		return ErrInstanceNotFound
	}
	s.Vps.SelectedID = id
	e.commit(userID, "select")
	return nil
}

// StartInstance resumes a stopped instance. If another one is running the
// caller must confirm; the other instance is then stopped first.
func (e *Engine) StartInstance(userID, id string, confirm bool) (*models.VpsInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	inst, err := e.target(s, id)
	if err != nil {
		return nil, err
	}

	switch {
	case inst.Status == models.StatusProvisioning:
		return nil, ErrProvisioning
	case inst.Status == models.StatusRunning:
		return nil, ErrAlreadyRunning
	case inst.TimeLeftSec <= 0:
		return nil, ErrNoTimeLeft
	}

	now := e.now()
	other := s.Vps.OtherRunning(inst.ID)
	if other != nil {
		if !confirm {
			return nil, &SwitchConfirmationError{RunningID: other.ID, RunningName: other.Name}
		}
		settleCountdown(other, now)
		other.Status = models.StatusStopped
		other.LastTickMs = now.UnixMilli()
	}

	inst.Status = models.StatusRunning
	inst.LastTickMs = now.UnixMilli()
	s.Vps.SelectedID = inst.ID

	if other != nil {
		e.notify(userID, s, "info", "Switched instance", fmt.Sprintf("%s is now running.", inst.Name))
	} else {
		e.notify(userID, s, "good", "VPS resumed", fmt.Sprintf("%s is running.", inst.Name))
	}
	e.commit(userID, "instance")

	c := copyInstance(inst)
	return &c, nil
}

// StopInstance freezes the countdown at its current value.
func (e *Engine) StopInstance(userID, id string) (*models.VpsInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	inst, err := e.target(s, id)
	if err != nil {
		return nil, err
	}
	if inst.Status != models.StatusRunning {
		return nil, ErrNotRunning
	}

	now := e.now()
	settleCountdown(inst, now)
	inst.Status = models.StatusStopped
	inst.LastTickMs = now.UnixMilli()

	e.notify(userID, s, "warn", "VPS stopped", fmt.Sprintf("%s timer paused.", inst.Name))
	e.commit(userID, "instance")

	c := copyInstance(inst)
	return &c, nil
}

func (e *Engine) ExtendInstance(userID, id string, hours int64) (*models.VpsInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	inst, err := e.target(s, id)
	if err != nil {
		return nil, err
	}
	if inst.Status == models.StatusProvisioning {
		return nil, ErrProvisioning
	}

	h := models.ClampHours(hours)
	cost := models.InstanceCost(inst.Plan, h)
	if err := e.ensureEnoughPoints(s, cost); err != nil {
		return nil, err
	}

	now := e.now()
	settleCountdown(inst, now)
	e.addPoints(userID, s, -cost, fmt.Sprintf("Extended time (+%dh)", h), models.LedgerSpend,
		map[string]interface{}{"kind": "extend", "hours": h, "inst": inst.ID})
	inst.TimeLeftSec += h * 3600
	inst.LastTickMs = now.UnixMilli()

	e.notify(userID, s, "good", "Time extended", fmt.Sprintf("%s +%dh", inst.Name, h))
	e.commit(userID, "instance")

	c := copyInstance(inst)
	return &c, nil
}

// DestroyInstance removes the instance for good. No refund.
func (e *Engine) DestroyInstance(userID, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return err
	}
	inst, err := e.target(s, id)
	if err != nil {
		return err
	}

	s.Vps.Remove(inst.ID)
	if t, ok := e.timers[inst.ID]; ok {
		t.Stop()
		delete(e.timers, inst.ID)
	}

	e.notify(userID, s, "warn", "Instance destroyed", inst.Name)
	e.commit(userID, "instance")
	return nil
}

// settleCountdown charges whole elapsed seconds since the last tick to a
// running instance. The sub-second remainder stays in LastTickMs.
func settleCountdown(inst *models.VpsInstance, now time.Time) bool {
	if inst.Status != models.StatusRunning || inst.TimeLeftSec <= 0 {
		return false
	}
	nowMs := now.UnixMilli()
	last := inst.LastTickMs
	if last == 0 {
		last = nowMs
	}
	passed := (nowMs - last) / 1000
	if passed <= 0 {
		return false
	}
	inst.TimeLeftSec -= passed
	if inst.TimeLeftSec < 0 {
		inst.TimeLeftSec = 0
	}
	inst.LastTickMs = last + passed*1000
	return true
}

// TickCountdown advances every running instance of every user by wall
// clock time and stops those that ran out.
func (e *Engine) TickCountdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for userID := range e.doc.Users {
		s, ok := e.doc.PerUser[userID]
		if !ok || s == nil {
			continue
		}
		day := s.Daily.UTCDate
		e.normalizeDaily(s)
		changed := day != s.Daily.UTCDate

		for _, inst := range s.Vps.Instances {
			if inst.Status != models.StatusRunning {
				continue
			}
			if settleCountdown(inst, now) {
				changed = true
			}
			if inst.TimeLeftSec <= 0 {
				inst.TimeLeftSec = 0
				inst.Status = models.StatusStopped
				inst.LastTickMs = now.UnixMilli()
				e.notify(userID, s, "warn", "Time ended", fmt.Sprintf("%s stopped.", inst.Name))
				changed = true
			}
		}
		if changed {
			e.commit(userID, "countdown")
		}
	}
}

// TickMetrics jitters the simulated load of running instances and records
// a history sample; idle instances drop to zero cpu and ram.
func (e *Engine) TickMetrics() {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := e.now().UnixMilli()
	for userID := range e.doc.Users {
		s, ok := e.doc.PerUser[userID]
		if !ok || s == nil {
			continue
		}
		e.normalizeDaily(s)
		changed := false
		for _, inst := range s.Vps.Instances {
			sizing := models.PlanSpec(inst.Plan)
			m := &inst.Metrics

			if inst.Status != models.StatusRunning {
				if m.CPUPct != 0 || m.RAMUsed != 0 || m.DiskUsed == 0 {
					changed = true
				}
				m.CPUPct = 0
				m.RAMUsed = 0
				if m.DiskUsed == 0 {
					m.DiskUsed = sizing.Disk * 0.6
				}
				continue
			}

			cpu := m.CPUPct
			if cpu == 0 {
				cpu = 15
			}
			ram := m.RAMUsed
			if ram == 0 {
				ram = sizing.RAM * 0.3
			}
			disk := m.DiskUsed
			if disk == 0 {
				disk = sizing.Disk * 0.6
			}

			m.CPUPct = models.ClampFloat(cpu+float64(models.RandInt(e.rng, -10, 12)), 5, 95)
			m.RAMUsed = models.ClampFloat(ram+float64(models.RandInt(e.rng, -8, 10))/100, 0.2, sizing.RAM*0.92)
			m.DiskUsed = models.ClampFloat(disk+float64(models.RandInt(e.rng, -5, 7))/100, 0.2, sizing.Disk*0.98)
			inst.History.Push(m.CPUPct, nowMs)
			changed = true
		}
		if changed {
			e.persister.MarkDirty()
			e.broadcaster.BroadcastStateUpdate(userID, "metrics")
		}
	}
}
