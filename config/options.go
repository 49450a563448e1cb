package config

const (
	defaultLogFile           = "openshelf.log"
	defaultLogLevel          = "info"
	defaultLogFileMaxSize    = 20
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 28
	defaultLogCompress       = false
	defaultPort              = 8080
	defaultHost              = "0.0.0.0"
	defaultData              = "/var/opt/openshelf"
	defaultDSN               = defaultData + "/openshelf.db"
	defaultLoanPeriodDays    = 14
	defaultMaxActiveLoans    = 3
	defaultDailyFineRate     = "0.25"
	defaultWorkerPoolSize    = 4
)

// Opts is the process-wide configuration, populated once at startup.
var Opts *Options

// Options uses mapstructure tags because viper resolves fields through
// mapstructure, not encoding/json.
type Options struct {
	// LogFile is the file to write logs to
	LogFile string `mapstructure:"log_file"`
	// LogLevel is the level of logging to show
	LogLevel string `mapstructure:"log_level"`
	// LogFileMaxSize is the maximum size of the log file before it is rotated, in MiB
	LogFileMaxSize int `mapstructure:"log_file_max_size"`
	// LogFileMaxBackups is the maximum number of log files to keep
	LogFileMaxBackups int `mapstructure:"log_file_max_backups"`
	// LogFileMaxAge is the maximum number of days to keep a log file
	LogFileMaxAge int `mapstructure:"log_file_max_age"`
	// LogCompress is whether or not to compress rotated log files
	LogCompress bool `mapstructure:"log_compress"`
	// DSN is the path of the sqlite database
	DSN string `mapstructure:"dsn_uri"`
	// Port is the port to listen on
	Port int `mapstructure:"port"`
	// Host is the host to listen on
	Host string `mapstructure:"host"`
	// Data is the directory to store data
	Data string `mapstructure:"data"`

	// LoanPeriodDays is added to the checkout date to produce the due date
	LoanPeriodDays int `mapstructure:"loan_period_days"`
	// MaxActiveLoans caps how many books a borrower may have out at once
	MaxActiveLoans int `mapstructure:"max_active_loans"`
	// DailyFineRate is the per-day accrual for an overdue loan, a decimal string
	DailyFineRate string `mapstructure:"daily_fine_rate"`
	// WorkerPoolSize bounds the fine-update batch fan-out
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
}

func GetDefaultOptions() *Options {
	Opts = &Options{
		LogFile:           defaultLogFile,
		LogLevel:          defaultLogLevel,
		LogFileMaxSize:    defaultLogFileMaxSize,
		LogFileMaxBackups: defaultLogFileMaxBackups,
		LogFileMaxAge:     defaultLogFileMaxAge,
		LogCompress:       defaultLogCompress,
		DSN:               defaultDSN,
		Port:              defaultPort,
		Host:              defaultHost,
		Data:              defaultData,
		LoanPeriodDays:    defaultLoanPeriodDays,
		MaxActiveLoans:    defaultMaxActiveLoans,
		DailyFineRate:     defaultDailyFineRate,
		WorkerPoolSize:    defaultWorkerPoolSize,
	}
	return Opts
}
