package tools

import (
	"strings"

	"github.com/annel0/mmo-tools/internal/config"
)

// ToolKind вид многоблочного инструмента
type ToolKind uint8

const (
	KindUnknown ToolKind = iota
	Pickaxe3x3
	Shovel3x3
	Veinminer
	TreeCapitator
)

// TagNamespace пространство имён тегов предметов инструментов
const TagNamespace = "vitems"

// Kinds все известные виды инструментов
var Kinds = []ToolKind{Pickaxe3x3, Shovel3x3, Veinminer, TreeCapitator}

var kindInfo = map[ToolKind]struct {
	tag       string
	configKey string
	title     string
}{
	Pickaxe3x3:    {tag: "3x3pickaxe", configKey: config.KeyPickaxe3x3, title: "3x3 Pickaxe"},
	Shovel3x3:     {tag: "3x3shovel", configKey: config.KeyShovel3x3, title: "3x3 Shovel"},
	Veinminer:     {tag: "veinminer", configKey: config.KeyVeinminer, title: "Veinminer"},
	TreeCapitator: {tag: "treecapitator", configKey: config.KeyTreeCapitator, title: "Tree Capitator"},
}

// Tag возвращает полный тег предмета, например "vitems:veinminer"
func (k ToolKind) Tag() string {
	info, ok := kindInfo[k]
	if !ok {
		return ""
	}
	return TagNamespace + ":" + info.tag
}

// ConfigKey возвращает ключ секции tools в конфигурации
func (k ToolKind) ConfigKey() string {
	return kindInfo[k].configKey
}

// Progressive сообщает, обрабатывает ли инструмент регион постепенно
func (k ToolKind) Progressive() bool {
	return k == Veinminer || k == TreeCapitator
}

func (k ToolKind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.title
	}
	return "Unknown"
}

// KindFromTag определяет вид по тегу предмета вида "vitems:<ключ>"
func KindFromTag(tag string) (ToolKind, bool) {
	key, ok := strings.CutPrefix(tag, TagNamespace+":")
	if !ok {
		return KindUnknown, false
	}
	for kind, info := range kindInfo {
		if info.tag == key {
			return kind, true
		}
	}
	return KindUnknown, false
}

// KindFromConfigKey определяет вид по ключу конфигурации без учёта регистра
func KindFromConfigKey(key string) (ToolKind, bool) {
	for kind, info := range kindInfo {
		if strings.EqualFold(info.configKey, key) {
			return kind, true
		}
	}
	return KindUnknown, false
}
