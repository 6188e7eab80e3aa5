package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	RedisPassword string
	RedisDB       int
	JWTSecret     string

	MatchPageLimitMax   int // 匹配分页单页上限
	LeaderboardCacheTTL int // 排行榜缓存有效期（秒）
	LeaderboardSize     int // 排行榜默认条数
}

func Load() *Config {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	matchLimitMax, _ := strconv.Atoi(getEnv("MATCH_PAGE_LIMIT_MAX", "50"))
	leaderboardTTL, _ := strconv.Atoi(getEnv("LEADERBOARD_CACHE_TTL", "300"))
	leaderboardSize, _ := strconv.Atoi(getEnv("LEADERBOARD_SIZE", "10"))

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             redisDB,
		JWTSecret:           os.Getenv("JWT_SECRET"),
		MatchPageLimitMax:   matchLimitMax,
		LeaderboardCacheTTL: leaderboardTTL,
		LeaderboardSize:     leaderboardSize,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
