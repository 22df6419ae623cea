package condition

import "fmt"

// Each classification switches over every Kind explicitly. A Kind added to the
// enumeration without a case here is reported as ErrUnknownKind.

// StunnedOrAsleep reports whether k prevents the holder from acting at all.
func StunnedOrAsleep(k Kind) (bool, error) {
	switch k {
	case Sleep, Stun:
		return true, nil
	case Silence, None, Snare, Blind, Stealth, Transform, Cleanse, Invulnerable, Shield, OnHit, Taunt, Knockback:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
}

// PreventsCasting reports whether k prevents spell casting.
func PreventsCasting(k Kind) (bool, error) {
	switch k {
	case Silence, Sleep, Stun:
		return true, nil
	case None, Snare, Blind, Stealth, Transform, Cleanse, Invulnerable, Shield, OnHit, Taunt, Knockback:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
}

// PreventsMovement reports whether k denies voluntary movement.
func PreventsMovement(k Kind) (bool, error) {
	switch k {
	case Stun, Snare, Sleep, Knockback:
		return true, nil
	case None, Silence, Blind, Stealth, Transform, Cleanse, Invulnerable, Shield, OnHit, Taunt:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
}

// AnyOf reports whether any status in statuses satisfies pred. The first
// classification error aborts the scan.
func AnyOf(statuses []Status, pred func(Kind) (bool, error)) (bool, error) {
	for _, s := range statuses {
		ok, err := pred(s.Kind)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Has reports whether any status in statuses is of kind k.
func Has(statuses []Status, k Kind) bool {
	for _, s := range statuses {
		if s.Kind == k {
			return true
		}
	}
	return false
}
