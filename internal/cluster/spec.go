package cluster

import (
	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/internal/params"
	"github.com/thebtf/textclust/pkg/similarity"
)

// Parameter keys understood by ParseSpec. Each list holds a canonical name
// followed by accepted aliases.
var (
	keyK          = []string{"num_clusters", "n_clusters", "k"}
	keySeed       = []string{"random_state", "seed"}
	keyMaxIter    = []string{"max_iter"}
	keyNInit      = []string{"n_init"}
	keyTol        = []string{"tol"}
	keyLinkage    = []string{"linkage"}
	keyEps        = []string{"eps"}
	keyMinSamples = []string{"min_samples"}
	keyMetric     = []string{"metric"}
)

// ParseSpec builds the typed parameter set for algorithm id from a loose
// parameter map. rows is the number of documents to be clustered and is
// used for the default cluster count.
func ParseSpec(id string, p params.Map, rows int) (Spec, error) {
	alg, err := Lookup(id)
	if err != nil {
		return nil, err
	}

	switch alg {
	case KMeans:
		spec := DefaultKMeansParams(rows)
		if err := readInt(p, &spec.K, keyK...); err != nil {
			return nil, err
		}
		var seed int
		if ok, err := readIntOK(p, &seed, keySeed...); err != nil {
			return nil, err
		} else if ok {
			spec.Seed = uint64(seed)
		}
		if err := readInt(p, &spec.MaxIter, keyMaxIter...); err != nil {
			return nil, err
		}
		if err := readInt(p, &spec.NInit, keyNInit...); err != nil {
			return nil, err
		}
		if err := readFloat(p, &spec.Tol, keyTol...); err != nil {
			return nil, err
		}
		return spec, nil

	case Agglomerative:
		spec := DefaultAgglomerativeParams(rows)
		if err := readInt(p, &spec.K, keyK...); err != nil {
			return nil, err
		}
		var linkage string
		if ok, err := readStringOK(p, &linkage, keyLinkage...); err != nil {
			return nil, err
		} else if ok {
			spec.Linkage = Linkage(linkage)
		}
		return spec, nil

	default:
		spec := DefaultDBSCANParams()
		if err := readFloat(p, &spec.Eps, keyEps...); err != nil {
			return nil, err
		}
		if err := readInt(p, &spec.MinSamples, keyMinSamples...); err != nil {
			return nil, err
		}
		if _, err := readStringOK(p, &spec.Metric, keyMetric...); err != nil {
			return nil, err
		}
		if spec.Metric == "" {
			spec.Metric = similarity.MetricEuclidean
		}
		return spec, nil
	}
}

func degenerate(err error) error {
	return failure.Wrap(failure.DegenerateInput, err, "invalid clustering parameters")
}

func readInt(p params.Map, dst *int, keys ...string) error {
	_, err := readIntOK(p, dst, keys...)
	return err
}

func readIntOK(p params.Map, dst *int, keys ...string) (bool, error) {
	v, ok, err := p.Int(keys...)
	if err != nil {
		return true, degenerate(err)
	}
	if ok {
		*dst = v
	}
	return ok, nil
}

func readFloat(p params.Map, dst *float64, keys ...string) error {
	v, ok, err := p.Float(keys...)
	if err != nil {
		return degenerate(err)
	}
	if ok {
		*dst = v
	}
	return nil
}

func readStringOK(p params.Map, dst *string, keys ...string) (bool, error) {
	v, ok, err := p.String(keys...)
	if err != nil {
		return true, degenerate(err)
	}
	if ok {
		*dst = v
	}
	return ok, nil
}
