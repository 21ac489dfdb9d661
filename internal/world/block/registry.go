package block

import "sync"

// Material имя материала блока (тег классификации), например "COAL_ORE".
// Инструменты сравнивают материалы только на равенство и через внешние предикаты.
type Material string

// BlockID представляет идентификатор блока в хранилище чанков
type BlockID uint16

// Properties описывает свойства типа блока
type Properties struct {
	Material Material
	// Drop материал выпадающего предмета; пусто - блок ничего не роняет
	Drop  Material
	Solid bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[BlockID]Properties)
	byMaterial = make(map[Material]BlockID)
)

// Register добавляет тип блока в регистр
func Register(id BlockID, props Properties) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = props
	byMaterial[props.Material] = id
}

// Get возвращает свойства для указанного ID
func Get(id BlockID) (Properties, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	props, exists := registry[id]
	return props, exists
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := Get(id)
	return exists
}

// MaterialOf возвращает материал блока; неизвестные ID считаются воздухом
func MaterialOf(id BlockID) Material {
	props, ok := Get(id)
	if !ok {
		return Air
	}
	return props.Material
}

// ByMaterial ищет ID блока по материалу
func ByMaterial(m Material) (BlockID, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	id, ok := byMaterial[m]
	return id, ok
}

// Материалы
const (
	Air         Material = "AIR"
	Bedrock     Material = "BEDROCK"
	Stone       Material = "STONE"
	Cobblestone Material = "COBBLESTONE"
	Deepslate   Material = "DEEPSLATE"
	Granite     Material = "GRANITE"
	Dirt        Material = "DIRT"
	GrassBlock  Material = "GRASS_BLOCK"
	Sand        Material = "SAND"
	Gravel      Material = "GRAVEL"
	Water       Material = "WATER"

	CoalOre          Material = "COAL_ORE"
	IronOre          Material = "IRON_ORE"
	CopperOre        Material = "COPPER_ORE"
	GoldOre          Material = "GOLD_ORE"
	DiamondOre       Material = "DIAMOND_ORE"
	DeepslateCoalOre Material = "DEEPSLATE_COAL_ORE"
	DeepslateIronOre Material = "DEEPSLATE_IRON_ORE"

	OakLog      Material = "OAK_LOG"
	BirchLog    Material = "BIRCH_LOG"
	OakLeaves   Material = "OAK_LEAVES"
	BirchLeaves Material = "BIRCH_LEAVES"

	// Предметы, которые не являются блоками
	Coal      Material = "COAL"
	RawIron   Material = "RAW_IRON"
	RawCopper Material = "RAW_COPPER"
	RawGold   Material = "RAW_GOLD"
	Diamond   Material = "DIAMOND"
)

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID BlockID = iota // 0
	BedrockBlockID
	StoneBlockID
	CobblestoneBlockID
	DeepslateBlockID
	GraniteBlockID
	DirtBlockID
	GrassBlockID
	SandBlockID
	GravelBlockID
	WaterBlockID

)

// Руды (начиная с 100)
const (
	CoalOreBlockID BlockID = iota + 100
	IronOreBlockID
	CopperOreBlockID
	GoldOreBlockID
	DiamondOreBlockID
	DeepslateCoalOreBlockID
	DeepslateIronOreBlockID

)

// Деревья (начиная с 200)
const (
	OakLogBlockID BlockID = iota + 200
	BirchLogBlockID
	OakLeavesBlockID
	BirchLeavesBlockID
)

func init() {
	Register(AirBlockID, Properties{Material: Air})
	Register(BedrockBlockID, Properties{Material: Bedrock, Solid: true})
	Register(StoneBlockID, Properties{Material: Stone, Drop: Cobblestone, Solid: true})
	Register(CobblestoneBlockID, Properties{Material: Cobblestone, Drop: Cobblestone, Solid: true})
	Register(DeepslateBlockID, Properties{Material: Deepslate, Drop: Deepslate, Solid: true})
	Register(GraniteBlockID, Properties{Material: Granite, Drop: Granite, Solid: true})
	Register(DirtBlockID, Properties{Material: Dirt, Drop: Dirt, Solid: true})
	Register(GrassBlockID, Properties{Material: GrassBlock, Drop: Dirt, Solid: true})
	Register(SandBlockID, Properties{Material: Sand, Drop: Sand, Solid: true})
	Register(GravelBlockID, Properties{Material: Gravel, Drop: Gravel, Solid: true})
	Register(WaterBlockID, Properties{Material: Water})

	Register(CoalOreBlockID, Properties{Material: CoalOre, Drop: Coal, Solid: true})
	Register(IronOreBlockID, Properties{Material: IronOre, Drop: RawIron, Solid: true})
	Register(CopperOreBlockID, Properties{Material: CopperOre, Drop: RawCopper, Solid: true})
	Register(GoldOreBlockID, Properties{Material: GoldOre, Drop: RawGold, Solid: true})
	Register(DiamondOreBlockID, Properties{Material: DiamondOre, Drop: Diamond, Solid: true})
	Register(DeepslateCoalOreBlockID, Properties{Material: DeepslateCoalOre, Drop: Coal, Solid: true})
	Register(DeepslateIronOreBlockID, Properties{Material: DeepslateIronOre, Drop: RawIron, Solid: true})

	Register(OakLogBlockID, Properties{Material: OakLog, Drop: OakLog, Solid: true})
	Register(BirchLogBlockID, Properties{Material: BirchLog, Drop: BirchLog, Solid: true})
	Register(OakLeavesBlockID, Properties{Material: OakLeaves, Solid: true})
	Register(BirchLeavesBlockID, Properties{Material: BirchLeaves, Solid: true})
}
