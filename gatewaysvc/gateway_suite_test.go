package gatewaysvc

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestGatewaySuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "gatewaysvc BDD suite")
}
