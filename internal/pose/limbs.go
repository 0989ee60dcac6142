package pose

// Limb is a pair of joints drawn as a bone.
type Limb struct {
	A, B Joint
}

// Limbs lists the bones drawn for overlays and the 3-D viewer.
var Limbs = []Limb{
	{Nose, LeftEyeInner}, {LeftEyeInner, LeftEye}, {LeftEye, LeftEyeOuter}, {LeftEyeOuter, LeftEar},
	{Nose, RightEyeInner}, {RightEyeInner, RightEye}, {RightEye, RightEyeOuter}, {RightEyeOuter, RightEar},
	{MouthLeft, MouthRight},
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow}, {LeftElbow, LeftWrist},
	{RightShoulder, RightElbow}, {RightElbow, RightWrist},
	{LeftWrist, LeftIndex}, {RightWrist, RightIndex},
	{LeftShoulder, LeftHip}, {RightShoulder, RightHip}, {LeftHip, RightHip},
	{LeftHip, LeftKnee}, {LeftKnee, LeftAnkle},
	{RightHip, RightKnee}, {RightKnee, RightAnkle},
	{LeftAnkle, LeftHeel}, {LeftHeel, LeftFootIndex},
	{RightAnkle, RightHeel}, {RightHeel, RightFootIndex},
}

// IsLeft reports whether a joint belongs to the left side of the body.
func IsLeft(j Joint) bool {
	switch j {
	case LeftEyeInner, LeftEye, LeftEyeOuter, LeftEar, MouthLeft,
		LeftShoulder, LeftElbow, LeftWrist, LeftPinky, LeftIndex, LeftThumb,
		LeftHip, LeftKnee, LeftAnkle, LeftHeel, LeftFootIndex:
		return true
	}
	return false
}

// IsRight reports whether a joint belongs to the right side of the body.
func IsRight(j Joint) bool {
	return j != Nose && !IsLeft(j)
}

// RequiredJoints are the joints every biomechanics metric depends on. A skeleton missing
// any of them is incomplete.
var RequiredJoints = []Joint{
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

// UpperBody are the joints framed by the zoom around impact.
var UpperBody = []Joint{
	Nose, LeftShoulder, RightShoulder, LeftElbow, RightElbow,
	LeftWrist, RightWrist, LeftIndex, RightIndex, LeftHip, RightHip,
}
