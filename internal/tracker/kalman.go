package tracker

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/tracksight/internal/geom"
)

// kalmanFilter is a constant-velocity Kalman filter over bounding boxes in
// XYAH form: state vector [cx, cy, a, h, vcx, vcy, va, vh] where a is the
// width/height aspect ratio. One filter instance is shared by all tracks;
// each track owns its mean and covariance.
//
// Noise scales with box height using the conventional 1/20 position and
// 1/160 velocity standard deviation weights, so large nearby vehicles are
// allowed more absolute jitter than distant ones.
//
// A freshly initiated state has zero velocity, which makes the first
// prediction reproduce the last observed box. Repeated predictions without
// an update inflate the covariance through the process noise, so a coasting
// track grows steadily less certain until a correction arrives.
type kalmanFilter struct {
	motionMat    *mat.Dense // 8x8 state transition
	updateMat    *mat.Dense // 4x8 state-to-measurement projection
	stdWeightPos float64
	stdWeightVel float64
}

const kalmanDim = 8

func newKalmanFilter() *kalmanFilter {
	kf := &kalmanFilter{
		motionMat:    mat.NewDense(kalmanDim, kalmanDim, nil),
		updateMat:    mat.NewDense(4, kalmanDim, nil),
		stdWeightPos: 1.0 / 20,
		stdWeightVel: 1.0 / 160,
	}
	for i := 0; i < kalmanDim; i++ {
		kf.motionMat.Set(i, i, 1)
	}
	// dt = 1 frame: position components integrate their velocities.
	for i := 0; i < 4; i++ {
		kf.motionMat.Set(i, i+4, 1)
		kf.updateMat.Set(i, i, 1)
	}
	return kf
}

// boxToXYAH converts a corner-form box to the measurement vector.
func boxToXYAH(b geom.Box) [4]float64 {
	w, h := b.Width(), b.Height()
	return [4]float64{b.X1 + w/2, b.Y1 + h/2, w / h, h}
}

// xyahToBox converts the position block of a state vector back to corner form.
func xyahToBox(cx, cy, a, h float64) geom.Box {
	w := a * h
	return geom.Box{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}
}

// initiate creates the state for a first observation.
func (kf *kalmanFilter) initiate(b geom.Box) (mean []float64, cov *mat.Dense) {
	z := boxToXYAH(b)
	mean = make([]float64, kalmanDim)
	copy(mean[:4], z[:])

	h := z[3]
	std := [kalmanDim]float64{
		2 * kf.stdWeightPos * h,
		2 * kf.stdWeightPos * h,
		1e-2,
		2 * kf.stdWeightPos * h,
		10 * kf.stdWeightVel * h,
		10 * kf.stdWeightVel * h,
		1e-5,
		10 * kf.stdWeightVel * h,
	}
	cov = mat.NewDense(kalmanDim, kalmanDim, nil)
	for i, s := range std {
		cov.Set(i, i, s*s)
	}
	return mean, cov
}

// predict advances mean and covariance by one frame in place.
func (kf *kalmanFilter) predict(mean []float64, cov *mat.Dense) {
	h := mean[3]
	std := [kalmanDim]float64{
		kf.stdWeightPos * h,
		kf.stdWeightPos * h,
		1e-2,
		kf.stdWeightPos * h,
		kf.stdWeightVel * h,
		kf.stdWeightVel * h,
		1e-5,
		kf.stdWeightVel * h,
	}

	mv := mat.NewVecDense(kalmanDim, mean)
	var next mat.VecDense
	next.MulVec(kf.motionMat, mv)
	copy(mean, next.RawVector().Data)

	// cov = F * cov * F^T + Q
	var fc mat.Dense
	fc.Mul(kf.motionMat, cov)
	cov.Mul(&fc, kf.motionMat.T())
	for i, s := range std {
		cov.Set(i, i, cov.At(i, i)+s*s)
	}
}

// project maps the state into measurement space: H * x and H * P * H^T + R.
func (kf *kalmanFilter) project(mean []float64, cov *mat.Dense) (*mat.VecDense, *mat.Dense) {
	h := mean[3]
	std := [4]float64{
		kf.stdWeightPos * h,
		kf.stdWeightPos * h,
		1e-1,
		kf.stdWeightPos * h,
	}

	projMean := mat.NewVecDense(4, nil)
	projMean.MulVec(kf.updateMat, mat.NewVecDense(kalmanDim, mean))

	var hc mat.Dense
	hc.Mul(kf.updateMat, cov)
	projCov := mat.NewDense(4, 4, nil)
	projCov.Mul(&hc, kf.updateMat.T())
	for i, s := range std {
		projCov.Set(i, i, projCov.At(i, i)+s*s)
	}
	return projMean, projCov
}

// correct folds a matched measurement into the state in place.
func (kf *kalmanFilter) correct(mean []float64, cov *mat.Dense, b geom.Box) {
	projMean, projCov := kf.project(mean, cov)

	// K = P * H^T * S^-1; S is 4x4 so a direct inverse is cheap and stable enough.
	var sInv mat.Dense
	if err := sInv.Inverse(projCov); err != nil {
		// Singular innovation covariance means the state collapsed; skip the
		// correction rather than poison the track with NaNs.
		return
	}
	var pht mat.Dense
	pht.Mul(cov, kf.updateMat.T())
	var gain mat.Dense
	gain.Mul(&pht, &sInv)

	z := boxToXYAH(b)
	innov := mat.NewVecDense(4, nil)
	innov.SubVec(mat.NewVecDense(4, z[:]), projMean)

	var delta mat.VecDense
	delta.MulVec(&gain, innov)
	for i := 0; i < kalmanDim; i++ {
		mean[i] += delta.AtVec(i)
	}

	// P = P - K * S * K^T
	var ks mat.Dense
	ks.Mul(&gain, projCov)
	var ksk mat.Dense
	ksk.Mul(&ks, gain.T())
	cov.Sub(cov, &ksk)
}
