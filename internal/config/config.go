package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера инструментов.
type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Telemetry  TelemetryConfig       `yaml:"telemetry"`
	EventBus   EventBusConfig        `yaml:"eventbus"`
	Auth       AuthConfig            `yaml:"auth"`
	World      WorldConfig           `yaml:"world"`
	Settings   SettingsConfig        `yaml:"settings"`
	Tools      map[string]ToolConfig `yaml:"tools"`
	Protection ProtectionConfig      `yaml:"protection"`
	Storage    StorageConfig         `yaml:"storage"`
}

type ServerConfig struct {
	TickRate int    `yaml:"tick_rate"`
	RESTPort int    `yaml:"rest_port"`
	LogLevel string `yaml:"log_level"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type AuthConfig struct {
	// JWTSecret base64-строка не короче 32 байт; пусто - случайный ключ на время процесса
	JWTSecret string `yaml:"jwt_secret"`
}

type WorldConfig struct {
	Seed int64 `yaml:"seed"`
	MinY int   `yaml:"min_y"`
	MaxY int   `yaml:"max_y"`
}

type SettingsConfig struct {
	// CooldownSweepTicks период очистки просроченных кулдаунов (600 тиков = 30 секунд при 20 TPS)
	CooldownSweepTicks int  `yaml:"cooldown_sweep_ticks"`
	Debug              bool `yaml:"debug"`
}

// ToolConfig настройки одного вида инструмента
type ToolConfig struct {
	Enabled             bool    `yaml:"enabled"`
	HasCooldown         bool    `yaml:"has_cooldown"`
	CooldownSeconds     float64 `yaml:"cooldown_seconds"`
	MaxBlocks           int     `yaml:"max_blocks"`
	AnimationDelayTicks int     `yaml:"animation_delay_ticks"`
	// MaxDurability прочность выдаваемого инструмента; 0 - неразрушимый
	MaxDurability int `yaml:"max_durability"`
	// Accept CEL-выражение над переменной material, решающее, подходит ли материал инструменту
	Accept string `yaml:"accept"`
}

// StorageConfig хранилище инвентарей агентов
type StorageConfig struct {
	// Driver memory, badger, redis, maria или mongo
	Driver       string `yaml:"driver"`
	FlushSeconds int    `yaml:"flush_seconds"`

	Path string `yaml:"path"` // badger

	Addr      string `yaml:"addr"` // redis
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`

	DSN string `yaml:"dsn"` // maria: user:pass@tcp(host:port)/dbname

	URI        string `yaml:"uri"` // mongo
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Драйверы хранилища инвентарей
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageRedis  = "redis"
	StorageMaria  = "maria"
	StorageMongo  = "mongo"
)

// ProtectionConfig описание защищённых регионов
type ProtectionConfig struct {
	Regions []RegionConfig `yaml:"regions"`
}

type RegionConfig struct {
	ID         string   `yaml:"id"`
	Min        [3]int   `yaml:"min"`
	Max        [3]int   `yaml:"max"`
	Members    []string `yaml:"members"`
	AllowBreak bool     `yaml:"allow_break"`
}

// Ключи инструментов в секции tools
const (
	KeyPickaxe3x3    = "pickaxe_3x3"
	KeyShovel3x3     = "shovel_3x3"
	KeyVeinminer     = "veinminer"
	KeyTreeCapitator = "tree_capitator"
)

// Выражения классификации по умолчанию
const (
	AcceptPickaxe = `material.contains("ORE") || material.contains("STONE") || material.contains("DEEPSLATE") ||
material.contains("NETHERRACK") || material.contains("OBSIDIAN") || material.contains("CONCRETE") ||
material.contains("TERRACOTTA") || material.contains("BRICKS") ||
material in ["COBBLESTONE", "ANDESITE", "DIORITE", "GRANITE", "END_STONE", "SANDSTONE", "RED_SANDSTONE", "PRISMARINE", "BASALT", "BLACKSTONE"]`

	AcceptShovel = `material in ["DIRT", "GRASS_BLOCK", "SAND", "RED_SAND", "GRAVEL", "CLAY", "SNOW", "SNOW_BLOCK",
"SOUL_SAND", "SOUL_SOIL", "MYCELIUM", "PODZOL", "COARSE_DIRT", "ROOTED_DIRT", "MUD", "MUDDY_MANGROVE_ROOTS"]`

	AcceptOre = `material.endsWith("_ORE") || material == "ANCIENT_DEBRIS"`

	AcceptLog = `material.endsWith("_LOG") || material.endsWith("_STEM")`
)

// DiamondDurability прочность алмазного инструмента
const DiamondDurability = 1561

var ErrInvalidConfig = errors.New("invalid config")

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			TickRate: 20,
			LogLevel: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "mmo-tools",
		},
		EventBus: EventBusConfig{
			Stream:    "TOOLS",
			Retention: 24,
			Buffer:    1024,
		},
		World: WorldConfig{
			Seed: 12345,
			MinY: -64,
			MaxY: 319,
		},
		Settings: SettingsConfig{
			CooldownSweepTicks: 600,
		},
		Storage: StorageConfig{
			Driver:       StorageMemory,
			FlushSeconds: 30,
			Path:         "data/inventories",
			KeyPrefix:    "tools:inv:",
		},
		Tools: map[string]ToolConfig{
			KeyPickaxe3x3: {
				Enabled:       true,
				MaxBlocks:     9,
				MaxDurability: DiamondDurability,
				Accept:        AcceptPickaxe,
			},
			KeyShovel3x3: {
				Enabled:       true,
				MaxBlocks:     9,
				MaxDurability: DiamondDurability,
				Accept:        AcceptShovel,
			},
			KeyVeinminer: {
				Enabled:             true,
				HasCooldown:         true,
				CooldownSeconds:     3,
				MaxBlocks:           64,
				AnimationDelayTicks: 2,
				MaxDurability:       DiamondDurability,
				Accept:              AcceptOre,
			},
			KeyTreeCapitator: {
				Enabled:             true,
				HasCooldown:         true,
				CooldownSeconds:     5,
				MaxBlocks:           128,
				AnimationDelayTicks: 2,
				MaxDurability:       DiamondDurability,
				Accept:              AcceptLog,
			},
		},
	}
}

// Tool возвращает настройки инструмента по ключу; отсутствующий ключ означает выключенный инструмент
func (c *Config) Tool(key string) (ToolConfig, bool) {
	if c == nil || c.Tools == nil {
		return ToolConfig{}, false
	}
	tc, ok := c.Tools[key]
	return tc, ok
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("%w: server.tick_rate must be positive, got %d", ErrInvalidConfig, c.Server.TickRate)
	}
	if c.World.MinY >= c.World.MaxY {
		return fmt.Errorf("%w: world.min_y (%d) must be below world.max_y (%d)", ErrInvalidConfig, c.World.MinY, c.World.MaxY)
	}
	for key, tc := range c.Tools {
		if tc.MaxBlocks < 1 {
			return fmt.Errorf("%w: tools.%s.max_blocks must be >= 1", ErrInvalidConfig, key)
		}
		if tc.HasCooldown && tc.CooldownSeconds < 0 {
			return fmt.Errorf("%w: tools.%s.cooldown_seconds must not be negative", ErrInvalidConfig, key)
		}
		if tc.MaxDurability < 0 {
			return fmt.Errorf("%w: tools.%s.max_durability must not be negative", ErrInvalidConfig, key)
		}
		if tc.AnimationDelayTicks < 0 {
			return fmt.Errorf("%w: tools.%s.animation_delay_ticks must not be negative", ErrInvalidConfig, key)
		}
	}
	switch c.Storage.Driver {
	case "", StorageMemory, StorageBadger, StorageRedis, StorageMaria, StorageMongo:
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Storage.FlushSeconds < 0 {
		return fmt.Errorf("%w: storage.flush_seconds must not be negative", ErrInvalidConfig)
	}
	for _, r := range c.Protection.Regions {
		if r.ID == "" {
			return fmt.Errorf("%w: protection region without id", ErrInvalidConfig)
		}
	}
	return nil
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "TOOLS_REST_PORT", 8089)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV TOOLS_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TOOLS_CONFIG")
		if path == "" {
			return Default(), nil // конфиг не задан: использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse разбирает YAML. Инструменты, указанные частично, дополняются значениями по умолчанию.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	defaults := cfg.Tools
	cfg.Tools = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Секцию tools разбираем отдельно, чтобы частично заданный инструмент
	// сохранял значения по умолчанию для пропущенных полей
	var raw struct {
		Tools map[string]yaml.Node `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse tools section: %w", err)
	}

	cfg.Tools = defaults
	for key, node := range raw.Tools {
		tc := defaults[key]
		if err := node.Decode(&tc); err != nil {
			return nil, fmt.Errorf("parse tools.%s: %w", key, err)
		}
		cfg.Tools[key] = tc
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
