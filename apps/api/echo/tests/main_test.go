package tests

import (
	"log"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	logsvc "github.com/trezcool/shule/services/logger"
)

var (
	conf       *core.Config
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
)

func TestMain(m *testing.M) {
	_ = os.Setenv("ENV", "TEST")
	conf = core.NewConfig()
	conf.TestMode = true
	conf.Debug = false // keep error payloads in their production shape

	rollbarLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	rollbarLogger.Enable(false)
	logger = rollbarLogger

	validate = validator.New()
	translator = newTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator, conf)

	os.Exit(m.Run())
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
