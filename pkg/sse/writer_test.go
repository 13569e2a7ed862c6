package sse_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/solacelabs/solace/pkg/sse"
)

var _ = Describe("WriteEvent", func() {
	It("encodes id, type, and data", func() {
		var sb strings.Builder
		err := sse.WriteEvent(&sb, sse.Event{ID: "7", Type: "solace.person.confirmed", Data: "body"})

		Expect(err).NotTo(HaveOccurred())
		Expect(sb.String()).To(Equal("id: 7\nevent: solace.person.confirmed\ndata: body\n\n"))
	})

	It("splits multi-line data across data fields", func() {
		var sb strings.Builder
		err := sse.WriteEvent(&sb, sse.Event{Data: "line1\nline2"})

		Expect(err).NotTo(HaveOccurred())
		Expect(sb.String()).To(Equal("data: line1\ndata: line2\n\n"))
	})

	It("round-trips through the reader", func() {
		var sb strings.Builder
		in := sse.Event{ID: "1", Type: "solace.memory.saved", Data: "a\nb"}
		Expect(sse.WriteEvent(&sb, in)).To(Succeed())

		out, err := sse.NewReader(strings.NewReader(sb.String())).Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(*out).To(Equal(in))
	})

	It("writes comments as keep-alives the reader skips", func() {
		var sb strings.Builder
		Expect(sse.WriteComment(&sb, "keep-alive")).To(Succeed())
		Expect(sse.WriteEvent(&sb, sse.Event{Data: "body"})).To(Succeed())

		r := sse.NewReader(strings.NewReader(sb.String()))
		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Data).To(Equal("body"))
	})
})
