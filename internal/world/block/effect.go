package block

// Effect визуальная/звуковая обратная связь по клетке. Отрисовка на стороне клиента.
type Effect uint8

const (
	EffectBreak Effect = iota + 1 // Частицы и звук разрушения блока
)

func (e Effect) String() string {
	switch e {
	case EffectBreak:
		return "break"
	default:
		return "unknown"
	}
}
