package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/unity/graph"
	"github.com/born-ml/unity/loader"
	"github.com/born-ml/unity/model"
)

type runOptions struct {
	weights string
	seq     int
	causal  bool
	seed    int64
	save    string
	dtype   string
}

func newRunCommand() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Encode a synthetic sequence",
		Args:  cobra.NoArgs,
	}
	hparams := hparamsFlag(cmd)
	cmd.Flags().StringVarP(&opts.weights, "weights", "w", "", "SafeTensors weights, local or gs:// (random when empty)")
	cmd.Flags().IntVarP(&opts.seq, "seq", "n", 10, "Number of tokens")
	cmd.Flags().BoolVar(&opts.causal, "causal", false, "Apply a causal attention mask")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Seed for random weights")
	cmd.Flags().StringVar(&opts.save, "save", "", "Write the model weights to this path after the run")
	cmd.Flags().StringVar(&opts.dtype, "dtype", string(loader.F32), "Element type for --save (F32, F16, BF16)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		h, err := hparams()
		if err != nil {
			return err
		}
		m, err := buildModel(cmd, h, opts.weights, opts.seed)
		if err != nil {
			return err
		}
		defer m.Close()

		m.SetContext(graph.NewContext(graph.Options{Name: "scratch"}))

		start := time.Now()
		out, err := m.Run(syntheticSequence(opts.seq, h.ModelDim), opts.seq, opts.causal)
		if err != nil {
			return err
		}
		klog.V(1).InfoS("Encoded sequence", "tokens", opts.seq, "elapsed", time.Since(start))

		mean, std := moments(out)
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "model:  %s\n", m.ID)
		fmt.Fprintf(w, "params: %d (%s)\n", m.Registry.Len(), humanBytes(m.Size()))
		fmt.Fprintf(w, "output: [%d %d]\n", opts.seq, h.ModelDim)
		fmt.Fprintf(w, "mean:   %.6f\n", mean)
		fmt.Fprintf(w, "std:    %.6f\n", std)

		if opts.save != "" {
			meta := map[string]string{"model_id": m.ID.String()}
			if err := loader.Save(opts.save, m.Registry, loader.DType(opts.dtype), meta); err != nil {
				return err
			}
			fmt.Fprintf(w, "saved:  %s\n", opts.save)
		}
		return nil
	}
	return cmd
}

// buildModel builds the encoder for h and fills it from weights, or from
// seed when weights is empty.
func buildModel(cmd *cobra.Command, h model.HParams, weights string, seed int64) (*model.Model, error) {
	if weights == "" {
		m, err := model.Build(h, model.Options{})
		if err != nil {
			return nil, err
		}
		if err := m.Randomize(seed); err != nil {
			m.Close()
			return nil, err
		}
		return m, nil
	}

	path, err := loader.Fetch(cmd.Context(), weights, cacheDir())
	if err != nil {
		return nil, err
	}
	r, err := loader.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	schema, err := loader.Schema(r)
	if err != nil {
		return nil, err
	}
	m, err := model.Build(h, model.Options{Schema: schema})
	if err != nil {
		return nil, err
	}
	if err := m.LoadWeights(r); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func syntheticSequence(seq, dim int) []float32 {
	data := make([]float32, seq*dim)
	for i := 0; i < seq; i++ {
		for j := 0; j < dim; j++ {
			data[i*dim+j] = float32(math.Sin(float64(i+1) * float64(j+1) / float64(dim)))
		}
	}
	return data
}

func moments(xs []float32) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += float64(x)
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := float64(x) - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(xs)))
}

func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "unity")
}
