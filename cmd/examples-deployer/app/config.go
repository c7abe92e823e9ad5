// Copyright (c) KAITO authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
)

// ToolConfig holds settings shared by every subcommand.
// Precedence: flags > env (EXAMPLES_DEPLOYER_*) > config file > defaults.
type ToolConfig struct {
	KubectlBinary   string        `mapstructure:"kubectl"`
	HelmBinary      string        `mapstructure:"helm"`
	CommandTimeout  time.Duration `mapstructure:"command-timeout"`
	RepoName        string        `mapstructure:"repo-name"`
	RepoURL         string        `mapstructure:"repo-url"`
	Kubeconfig      string        `mapstructure:"kubeconfig"`
	KubeContext     string        `mapstructure:"context"`
	FeatureGates    string        `mapstructure:"feature-gates"`
	MetricsTextfile string        `mapstructure:"metrics-textfile"`
}

func addToolFlags(fs *pflag.FlagSet) {
	fs.String("kubectl", consts.KubectlBinary, "kubectl binary to run.")
	fs.String("helm", consts.HelmBinary, "helm binary to run.")
	fs.Duration("command-timeout", consts.DefaultCommandTimeout, "Upper bound for each kubectl or helm invocation.")
	fs.String("repo-name", consts.DefaultRepoName, "Helm repository name.")
	fs.String("repo-url", consts.DefaultRepoURL, "Helm repository URL.")
	fs.String("kubeconfig", "", "Path to the kubeconfig used when apiClusterControl is enabled.")
	fs.String("context", "", "Kubeconfig context used when apiClusterControl is enabled.")
	fs.String("feature-gates", "", "Comma-separated name=bool pairs: apiClusterControl, rollbackOnFailure, fluxExport.")
	fs.String("metrics-textfile", "", "Write Prometheus metrics to this file on exit, for the node-exporter textfile collector.")
}

// loadToolConfig reads the optional config file and environment into a ToolConfig.
// An explicitly named config file must exist; the default one may be absent.
func loadToolConfig(v *viper.Viper, fs *pflag.FlagSet, cfgFile string) (*ToolConfig, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(cwd)
		v.SetConfigType("yaml")
		v.SetConfigName(consts.ConfigFileName)
	}

	v.SetEnvPrefix(consts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		klog.V(2).InfoS("Using config file", "path", v.ConfigFileUsed())
	}

	cfg := &ToolConfig{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
