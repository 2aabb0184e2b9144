package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "hadesstar-bot"

// Init 전에는 아무것도 출력하지 않는다 (테스트에서 Init 없이 쓰는 경우)
var (
	base = zap.NewNop()
	log  = base.Sugar()
)

// Init production 이면 JSON, 아니면 색 있는 콘솔 출력.
// 알 수 없는 level 은 info.
func Init(level, env string) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.InitialFields = map[string]interface{}{"service": serviceName}
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	built, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Set(built)
}

// Set 외부에서 만든 로거로 교체 (테스트에서 observer 주입)
func Set(l *zap.Logger) {
	base = l
	log = l.Sugar()
}

// Named 컴포넌트별 구조화 로거 (서비스 생성자에 주입)
func Named(name string) *zap.Logger {
	return base.Named(name)
}

func Sync() {
	_ = base.Sync()
}

func Debug(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	log.Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	log.Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	log.Errorw(msg, keysAndValues...)
}

// Fatal 로그 후 os.Exit(1)
func Fatal(msg string, keysAndValues ...interface{}) {
	log.Fatalw(msg, keysAndValues...)
}
