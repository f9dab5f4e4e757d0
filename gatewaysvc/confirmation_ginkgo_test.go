package gatewaysvc

import (
	"io/ioutil"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aurex-chain/aurex/chaintypes"
)

var _ = Describe("block confirmation forwarding", func() {
	var (
		ln       net.Listener
		received chan string
		ledger   *SharedLedger
		gw       *Gateway
		client   *Client
	)

	BeforeEach(func() {
		appLn, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		ln = appLn

		received = make(chan string, 4)
		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				buf := make([]byte, 4096)
				n, _ := conn.Read(buf)
				received <- string(buf[:n])
				conn.Close()
			}
		}()

		dir, err := ioutil.TempDir("", "gatewaysvc-ledger")
		Expect(err).NotTo(HaveOccurred())
		sl, err := OpenSharedLedger(dir + "/shared.sqlite3")
		Expect(err).NotTo(HaveOccurred())
		ledger = sl

		gwLn, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		gwPort := gwLn.Addr().(*net.TCPAddr).Port
		gwLn.Close()

		appPort := ln.Addr().(*net.TCPAddr).Port
		gw = New(Config{
			Host: "127.0.0.1", Port: gwPort,
			AppServerHost: "127.0.0.1", AppServerPort: appPort,
		}, ledger)
		Expect(gw.Start()).To(Succeed())

		client = NewClient("127.0.0.1", gwPort)
	})

	AfterEach(func() {
		gw.Stop()
		ledger.Close()
		ln.Close()
	})

	When("a node confirms a newly-sealed block", func() {
		It("forwards the confirmation to the app server and records it locally", func() {
			block := chaintypes.Block{Index: 0, CurrentHash: "hash-1", MinerID: "m1", Timestamp: "2026-01-01T00:00:00Z"}
			Expect(client.SendBlockConfirmation(block, "node-1")).To(Succeed())

			Eventually(received, 3*time.Second).Should(Receive(ContainSubstring("hash-1")))

			isNew, err := ledger.RecordConfirmation("hash-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse(), "second record of same block_hash must not be new")
		})
	})
})
