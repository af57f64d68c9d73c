package devops

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// DBEntry is the YAML document stored in the parameter. A plain string
// parameter is taken as the DSN itself.
type DBEntry struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Params   string `yaml:"params"`
}

// DSN renders a go-sql-driver/mysql connection string.
func (e DBEntry) DSN() string {
	params := e.Params
	if params == "" {
		params = "charset=utf8mb4&parseTime=True&loc=UTC"
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s", e.Username, e.Password, e.Host, e.Name, params)
}

// ParameterGetter is the part of the SSM client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

var (
	once      sync.Once
	client    ParameterGetter
	clientErr error
)

func defaultClient(ctx context.Context) (ParameterGetter, error) {
	once.Do(func() {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			clientErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		client = ssm.NewFromConfig(cfg)
	})
	return client, clientErr
}

// LoadDSN reads the database DSN from the named SSM parameter using the
// default AWS credential chain.
func LoadDSN(ctx context.Context, paramName string) (string, error) {
	c, err := defaultClient(ctx)
	if err != nil {
		return "", err
	}
	return LoadDSNWith(ctx, c, paramName)
}

func LoadDSNWith(ctx context.Context, c ParameterGetter, paramName string) (string, error) {
	out, err := c.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", paramName)
	}

	value := strings.TrimSpace(*out.Parameter.Value)
	if !strings.Contains(value, "\n") && !strings.HasPrefix(value, "name:") {
		return value, nil
	}

	var entry DBEntry
	if err := yaml.Unmarshal([]byte(value), &entry); err != nil {
		return "", fmt.Errorf("unmarshal yaml: %w", err)
	}
	return entry.DSN(), nil
}
