package analysis

// Health is the overall banner shown next to the averages
type Health int

const (
	HealthUnstable Health = iota
	HealthAttention
	HealthMonitoring
	HealthOptimal
)

func (h Health) String() string {
	switch h {
	case HealthOptimal:
		return "System is operating optimally"
	case HealthMonitoring:
		return "System is stable but requires monitoring"
	case HealthAttention:
		return "System requires attention"
	default:
		return "System is unstable - immediate action required"
	}
}

// MarshalText renders the banner text in snapshots
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// SystemHealth bands both stability scores together; the weaker channel decides
func SystemHealth(voltageStability, frequencyStability float64) Health {
	switch {
	case voltageStability > 90 && frequencyStability > 90:
		return HealthOptimal
	case voltageStability > 70 && frequencyStability > 70:
		return HealthMonitoring
	case voltageStability > 50 && frequencyStability > 50:
		return HealthAttention
	default:
		return HealthUnstable
	}
}
