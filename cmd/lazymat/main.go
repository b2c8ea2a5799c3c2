// Copyright 2025 lazymat Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lazymat-io/lazymat/base"
	"github.com/lazymat-io/lazymat/base/log"
	"github.com/lazymat-io/lazymat/cmd/version"
	"github.com/lazymat-io/lazymat/conformance"
	"github.com/lazymat-io/lazymat/lazy"
	"github.com/lazymat-io/lazymat/tensor"
)

var lazymatCommand = &cobra.Command{
	Use:   "lazymat",
	Short: "Conformance harness for lazy tensor implementations.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var checkCommand = &cobra.Command{
	Use:   "check",
	Short: "Run the built-in implementations through the conformance checks.",
	Run:   runCheck,
}

func init() {
	log.AddFlags(lazymatCommand.PersistentFlags())
	lazymatCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	lazymatCommand.PersistentFlags().BoolP("version", "v", false, "lazymat version")
	lazymatCommand.AddCommand(checkCommand)

	checkCommand.Flags().Int64("seed", 19, "seed of the random generator")
	checkCommand.Flags().Int("cg-iterations", 200, "maximum conjugate gradient iterations")
	checkCommand.Flags().Int("trace-samples", 128, "number of probe vectors of the log-determinant estimator")
	checkCommand.Flags().Bool("sample", true, "check the second moment of drawn samples")
	base.Must(viper.BindPFlag("seed", checkCommand.Flags().Lookup("seed")))
	base.Must(viper.BindPFlag("cg-iterations", checkCommand.Flags().Lookup("cg-iterations")))
	base.Must(viper.BindPFlag("trace-samples", checkCommand.Flags().Lookup("trace-samples")))
	base.Must(viper.BindPFlag("sample", checkCommand.Flags().Lookup("sample")))
	viper.SetEnvPrefix("lazymat")
	viper.AutomaticEnv()
}

// checkSubject names one built-in implementation handed to the runner.
type checkSubject struct {
	name    string
	adapter conformance.Adapter
}

func builtinSubjects() []checkSubject {
	return []checkSubject{
		{"dense rectangular", denseSubject{shape: []int{4, 6}}},
		{"dense square", denseSubject{shape: []int{5, 5}, spd: true}},
		{"dense batch", denseSubject{shape: []int{3, 5, 5}, spd: true}},
		{"low-rank plus diag", factorSubject{n: 5, rank: 2, shift: 1}},
		{"low-rank plus diag batch", factorSubject{batch: []int{4}, n: 6, rank: 3, shift: 1}},
	}
}

func runCheck(cmd *cobra.Command, args []string) {
	debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
	log.SetLogger(cmd.Root().PersistentFlags(), debug)

	settings := lazy.NewSettings()
	settings.MaxCGIterations = viper.GetInt("cg-iterations")
	settings.NumTraceSamples = viper.GetInt("trace-samples")
	cfg := conformance.NewConfig(viper.GetInt64("seed"))
	cfg.ShouldTestSample = viper.GetBool("sample")

	subjects := builtinSubjects()
	bar := progressbar.Default(int64(len(subjects)), "checking")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Subject", "Check", "Max Error", "Tolerance", "Status"})
	var all []conformance.CheckResult
	for _, subject := range subjects {
		results := conformance.RunChecks(subject.adapter, cfg, settings, func(name string) {
			bar.Describe(fmt.Sprintf("%s: %s", subject.name, name))
		})
		for _, result := range results {
			table.Append([]string{
				subject.name,
				result.Name,
				fmt.Sprintf("%.3e", result.MaxError),
				fmt.Sprintf("%.0e", result.Tolerance),
				lo.Ternary(result.Passed(), "PASS", "FAIL"),
			})
		}
		all = append(all, results...)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	table.Render()
	failures := lo.CountBy(all, func(result conformance.CheckResult) bool {
		return !result.Passed()
	})
	if failures > 0 {
		log.Logger().Error("conformance checks failed", zap.Int("failures", failures))
		os.Exit(1)
	}
	log.Logger().Info("all conformance checks passed", zap.Int("subjects", len(subjects)))
}

// denseSubject materializes its matrix up front, optionally symmetric
// positive definite.
type denseSubject struct {
	shape []int
	spd   bool
}

func (s denseSubject) CreateLazyTensor() lazy.LazyTensor {
	if !s.spd {
		return lazy.NewDense(tensor.RandN(conformance.Generator(), s.shape...))
	}
	n := s.shape[len(s.shape)-1]
	count := 1
	for _, size := range s.shape[:len(s.shape)-2] {
		count *= size
	}
	data := make([]float64, count*n*n)
	for b := 0; b < count; b++ {
		factor := conformance.Generator().NormalMatrix(n, n, 0, 0.3)
		slice := data[b*n*n:]
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				sum := float64(0)
				for k := 0; k < n; k++ {
					sum += factor[i][k] * factor[j][k]
				}
				if i == j {
					sum += 5
				}
				slice[i*n+j] = sum
			}
		}
	}
	return lazy.NewDense(tensor.NewTensor(data, s.shape...))
}

func (s denseSubject) EvaluateLazyTensor(lt lazy.LazyTensor) *tensor.Tensor {
	return lt.Representation()[0]
}

// factorSubject is a low-rank factorization R R' plus a diagonal shift.
type factorSubject struct {
	batch []int
	n     int
	rank  int
	shift float64
}

func (s factorSubject) CreateLazyTensor() lazy.LazyTensor {
	rootShape := append(append([]int{}, s.batch...), s.n, s.rank)
	count := 1
	for _, size := range rootShape {
		count *= size
	}
	root := tensor.NewTensor(conformance.Generator().NormalVector(count, 0, 0.5), rootShape...)
	shiftShape := append(append([]int{}, s.batch...), s.n)
	return lazy.NewRoot(root).AddDiag(tensor.Full(s.shift, shiftShape...))
}

func (s factorSubject) EvaluateLazyTensor(lt lazy.LazyTensor) *tensor.Tensor {
	rep := lt.Representation()
	root, shift := rep[0], rep[1]
	return tensor.Add(tensor.MatMulT(root, root, false, true), tensor.DiagEmbed(shift))
}

func main() {
	if err := lazymatCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
