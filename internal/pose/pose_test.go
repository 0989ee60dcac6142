package pose

import "testing"

func TestParseJointRoundTrip(t *testing.T) {
	for i := 0; i < JointCount; i++ {
		j := Joint(i)
		got, ok := ParseJoint(j.String())
		if !ok || got != j {
			t.Errorf("ParseJoint(%q) = %v, %v; want %v", j.String(), got, ok, j)
		}
	}
	if _, ok := ParseJoint("bat_tip"); ok {
		t.Error("expected unknown joint name to be rejected")
	}
}

func TestSideJoints(t *testing.T) {
	_, elbow, wrist, _ := Right.Arm()
	if elbow != RightElbow || wrist != RightWrist {
		t.Errorf("unexpected right arm joints %v %v", elbow, wrist)
	}
	hip, _, _ := Left.Leg()
	if hip != LeftHip {
		t.Errorf("unexpected left hip %v", hip)
	}
	if s, ok := ParseSide("sideways"); ok || s != Right {
		t.Errorf("ParseSide accepted invalid input")
	}
}

func TestLimbSides(t *testing.T) {
	if !IsLeft(LeftKnee) || IsRight(LeftKnee) {
		t.Error("left knee misclassified")
	}
	if IsLeft(Nose) || IsRight(Nose) {
		t.Error("nose should be on neither side")
	}
}
