package tools

// Damageable инструмент с износом
type Damageable interface {
	Damage() int
	MaxDamage() int
	SetDamage(int)
}

// Wear состояние инструмента после износа
type Wear uint8

const (
	Intact    Wear = iota // Инструмент цел
	Exhausted             // Износ достиг предела, инструмент нужно уничтожить
)

func (w Wear) String() string {
	if w == Exhausted {
		return "exhausted"
	}
	return "intact"
}

// ApplyDamage добавляет amount к износу инструмента.
// Инструменты с MaxDamage() <= 0 неразрушимы и не меняются; amount <= 0 ничего не делает.
func ApplyDamage(tool Damageable, amount int) Wear {
	if tool == nil {
		return Intact
	}
	maxDamage := tool.MaxDamage()
	if maxDamage <= 0 {
		return Intact
	}
	if amount > 0 {
		tool.SetDamage(tool.Damage() + amount)
	}
	if tool.Damage() >= maxDamage {
		return Exhausted
	}
	return Intact
}
