package models

type InstanceStatus string

const (
	StatusProvisioning InstanceStatus = "provisioning"
	StatusRunning      InstanceStatus = "running"
	StatusStopped      InstanceStatus = "stopped"
)

const (
	MaxInstances      = 3
	MaxRunning        = 1
	MaxHistorySamples = 22
	MinHours          = 1
	MaxHours          = 24
)

type Metrics struct {
	CPUPct   float64 `json:"cpuPct"`
	RAMUsed  float64 `json:"ramUsed"`
	DiskUsed float64 `json:"diskUsed"`
}

type MetricsHistory struct {
	CPU []float64 `json:"cpu"`
	TS  []int64   `json:"ts"`
}

// Push appends a sample and drops the oldest beyond MaxHistorySamples.
func (h *MetricsHistory) Push(cpu float64, ts int64) {
	h.CPU = append(h.CPU, cpu)
	h.TS = append(h.TS, ts)
	if over := len(h.CPU) - MaxHistorySamples; over > 0 {
		h.CPU = h.CPU[over:]
	}
	if over := len(h.TS) - MaxHistorySamples; over > 0 {
		h.TS = h.TS[over:]
	}
}

type VpsInstance struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Plan        string         `json:"plan"`
	Region      string         `json:"region"`
	Image       string         `json:"image"`
	Status      InstanceStatus `json:"status"`
	TimeLeftSec int64          `json:"timeLeftSec"`
	LastTickMs  int64          `json:"lastTickMs"`
	CreatedAt   int64          `json:"createdAt"`
	IPv4        string         `json:"ipv4"`
	Hostname    string         `json:"hostname"`
	Metrics     Metrics        `json:"metrics"`
	History     MetricsHistory `json:"history"`

	// ProvisionGen identifies the pending provisioning completion; a
	// completion carrying any other value is discarded.
	ProvisionGen int64 `json:"provisionGen,omitempty"`
}

type VpsState struct {
	SelectedID string         `json:"selectedId"`
	Instances  []*VpsInstance `json:"instances"`
}

func (v *VpsState) Find(id string) *VpsInstance {
	for _, inst := range v.Instances {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

func (v *VpsState) Selected() *VpsInstance {
	if v.SelectedID == "" {
		return nil
	}
	return v.Find(v.SelectedID)
}

func (v *VpsState) CountRunning() int {
	n := 0
	for _, inst := range v.Instances {
		if inst.Status == StatusRunning {
			n++
		}
	}
	return n
}

func (v *VpsState) OtherRunning(excludeID string) *VpsInstance {
	for _, inst := range v.Instances {
		if inst.Status == StatusRunning && inst.ID != excludeID {
			return inst
		}
	}
	return nil
}

// Remove deletes the instance and repairs the selection.
func (v *VpsState) Remove(id string) *VpsInstance {
	for i, inst := range v.Instances {
		if inst.ID != id {
			continue
		}
		v.Instances = append(v.Instances[:i], v.Instances[i+1:]...)
		if v.SelectedID == id {
			v.SelectedID = ""
			if len(v.Instances) > 0 {
				v.SelectedID = v.Instances[0].ID
			}
		}
		return inst
	}
	return nil
}

type CreateInstanceRequest struct {
	Name   string `json:"name"`
	Plan   string `json:"plan"`
	Region string `json:"region"`
	Image  string `json:"image"`
	Hours  int64  `json:"hours"`
}

type ExtendInstanceRequest struct {
	Hours int64 `json:"hours" binding:"required"`
}

type StartInstanceRequest struct {
	Confirm bool `json:"confirm"`
}

// ClampHours keeps a requested duration inside [MinHours, MaxHours].
func ClampHours(h int64) int64 {
	if h < MinHours {
		return MinHours
	}
	if h > MaxHours {
		return MaxHours
	}
	return h
}

// InstanceCost is the price of h hours on a plan, never below 1 point.
func InstanceCost(planID string, h int64) int64 {
	cost := PlanSpec(planID).PointsPerHour * ClampHours(h)
	if cost < 1 {
		return 1
	}
	return cost
}
