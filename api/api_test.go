package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/eventstream/nop"
	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/keylock"
	"github.com/solacelabs/solace/pkg/lifecycle"
	"github.com/solacelabs/solace/pkg/llm"
	"github.com/solacelabs/solace/pkg/recognize"
	"github.com/solacelabs/solace/pkg/storage/inmemory"
	testutils "github.com/solacelabs/solace/pkg/utils/test"
	vecmem "github.com/solacelabs/solace/pkg/vector/inmemory"
	"github.com/solacelabs/solace/pkg/whisper"
)

// scriptedLLM answers each assist prompt with a plausible canned response.
func scriptedLLM(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, `{"summary"`):
		return `{"summary": "Talked about the garden.", "emotional_tone": "warm", "important_event": ""}`, nil
	case strings.Contains(prompt, `{"routines"`):
		return `{"routines": []}`, nil
	case strings.Contains(prompt, `{"index"`):
		return `{"index": 1}`, nil
	default:
		return `{"text": "This is your daughter Sarah."}`, nil
	}
}

type testServer struct {
	*Server
	store *inmemory.Store
	index *vecmem.Index
	faces *testutils.MockFaceEmbedder
}

func newTestServer() *testServer {
	logger := zap.NewNop()
	store := inmemory.NewStore()
	index := vecmem.NewIndex()
	faces := testutils.NewMockFaceEmbedder()
	text := testutils.NewMockTextEmbedder()
	assist := llm.NewAssist(scriptedLLM, logger)

	people := lifecycle.NewService(store, index, text, assist, nil, nop.NewPublisher(), keylock.New(), logger)
	recognizer := recognize.New(recognize.Config{}, faces, index, logger)
	whisperer := whisper.NewComposer(store, assist, nil, logger)

	server := NewServer(Config{ListenAddr: ":0"}, recognizer, people, whisperer, faces, nil, logger)
	return &testServer{Server: server, store: store, index: index, faces: faces}
}

func jsonRequest(method, path string, body any) *http.Request {
	data, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	req, err := http.NewRequest(method, path, bytes.NewReader(data))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func decodeBody(resp *http.Response, out any) {
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(data, out)).To(Succeed())
}

func frame(seed string) string {
	return base64.StdEncoding.EncodeToString([]byte(seed))
}

var _ = Describe("handlePing", func() {
	It("returns pong", func() {
		ts := newTestServer()
		req, err := http.NewRequest(http.MethodGet, "/ping", nil)
		Expect(err).NotTo(HaveOccurred())

		resp, err := ts.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	})
})

var _ = Describe("handleRecognize", func() {
	var ts *testServer

	enroll := func(name, photoSeed string) *identity.Person {
		var person identity.Person
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
			Name:  name,
			Photo: frame(photoSeed),
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		decodeBody(resp, &person)
		return &person
	}

	BeforeEach(func() {
		ts = newTestServer()
	})

	It("rejects an empty frame batch", func() {
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("rejects frames that are not base64", func() {
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
			Frames: []string{"!!not-base64!!"},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("reports a faceless batch as not recognized without minting anyone", func() {
		ts.faces.NoFaceOn = "blurry"
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
			Frames: []string{frame("blurry")},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var body RecognizeResponse
		decodeBody(resp, &body)
		Expect(body.Recognized).To(BeFalse())
		Expect(body.Reason).To(Equal(string(recognize.ReasonNoFace)))
		Expect(body.PersonID).To(BeEmpty())

		pending, err := ts.store.ListPending(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
	})

	It("mints a temporary person for an unknown face", func() {
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
			Frames: []string{frame("stranger")},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var body RecognizeResponse
		decodeBody(resp, &body)
		Expect(body.Recognized).To(BeFalse())
		Expect(body.Reason).To(Equal(string(recognize.ReasonNoMatch)))
		Expect(body.PersonID).NotTo(BeEmpty())
		Expect(body.Status).To(Equal(string(identity.StatusTemporary)))

		pending, err := ts.store.ListPending(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(HaveLen(1))
	})

	It("recognizes an enrolled person and attaches a whisper", func() {
		person := enroll("Sarah", "sarah-face")

		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
			Frames: []string{frame("sarah-face")},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var body RecognizeResponse
		decodeBody(resp, &body)
		Expect(body.Recognized).To(BeTrue())
		Expect(body.PersonID).To(Equal(person.ID))
		Expect(body.Reason).To(Equal(string(recognize.ReasonMatched)))
		Expect(body.Confidence).To(BeNumerically(">", 0.99))
		Expect(body.Whisper).NotTo(BeNil())
		Expect(body.Whisper.Text).NotTo(BeEmpty())
	})

	It("binds a repeat sighting of an unknown face to the same identity", func() {
		first, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
			Frames: []string{frame("stranger")},
		}))
		Expect(err).NotTo(HaveOccurred())
		var firstBody RecognizeResponse
		decodeBody(first, &firstBody)

		second, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
			Frames: []string{frame("stranger")},
		}))
		Expect(err).NotTo(HaveOccurred())
		var secondBody RecognizeResponse
		decodeBody(second, &secondBody)

		Expect(secondBody.Recognized).To(BeFalse())
		Expect(secondBody.Reason).To(Equal(string(recognize.ReasonUnconfirmed)))
		Expect(secondBody.PersonID).To(Equal(firstBody.PersonID))

		pending, err := ts.store.ListPending(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(HaveLen(1))
	})
})

var _ = Describe("caregiver endpoints", func() {
	var ts *testServer

	BeforeEach(func() {
		ts = newTestServer()
	})

	Describe("handleEnroll", func() {
		It("creates a confirmed person", func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
				Name:     "Sarah",
				Relation: "daughter",
				Photo:    frame("sarah-face"),
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var person identity.Person
			decodeBody(resp, &person)
			Expect(person.Status).To(Equal(identity.StatusConfirmed))
			Expect(person.Name).To(Equal("Sarah"))
		})

		It("requires a name", func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
				Photo: frame("x"),
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("requires a photo", func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
				Name: "Sarah",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 422 when the photo has no face", func() {
			ts.faces.NoFaceOn = "landscape"
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
				Name:  "Sarah",
				Photo: frame("landscape"),
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})
	})

	Describe("handleConfirm", func() {
		var personID string

		BeforeEach(func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
				Frames: []string{frame("stranger")},
			}))
			Expect(err).NotTo(HaveOccurred())
			var body RecognizeResponse
			decodeBody(resp, &body)
			personID = body.PersonID
		})

		It("promotes a temporary person", func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/confirm", ConfirmRequest{
				PersonID: personID,
				Name:     "Ruth",
				Relation: "neighbor",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var person identity.Person
			decodeBody(resp, &person)
			Expect(person.Status).To(Equal(identity.StatusConfirmed))
			Expect(person.Name).To(Equal("Ruth"))
		})

		It("returns 409 when already confirmed", func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/confirm", ConfirmRequest{
				PersonID: personID,
				Name:     "Ruth",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			resp, err = ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/confirm", ConfirmRequest{
				PersonID: personID,
				Name:     "Ruth",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
		})

		It("returns 404 for an unknown person", func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/confirm", ConfirmRequest{
				PersonID: "ghost",
				Name:     "Ruth",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("requires person_id and name", func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/confirm", ConfirmRequest{Name: "Ruth"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			resp, err = ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/confirm", ConfirmRequest{PersonID: personID}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("listing", func() {
		It("lists pending and confirmed persons", func() {
			_, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
				Frames: []string{frame("stranger")},
			}))
			Expect(err).NotTo(HaveOccurred())
			_, err = ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
				Name:  "Sarah",
				Photo: frame("sarah-face"),
			}))
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodGet, "/caregiver/pending", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := ts.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var pending struct {
				Count int `json:"count"`
			}
			decodeBody(resp, &pending)
			Expect(pending.Count).To(Equal(1))

			req, err = http.NewRequest(http.MethodGet, "/caregiver/confirmed", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err = ts.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var confirmed struct {
				Count int `json:"count"`
			}
			decodeBody(resp, &confirmed)
			Expect(confirmed.Count).To(Equal(1))
		})
	})

	Describe("handleDeletePerson", func() {
		It("deletes a person and their data", func() {
			resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
				Name:  "Sarah",
				Photo: frame("sarah-face"),
			}))
			Expect(err).NotTo(HaveOccurred())
			var person identity.Person
			decodeBody(resp, &person)

			req, err := http.NewRequest(http.MethodDelete, "/caregiver/person/"+person.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err = ts.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			Expect(ts.index.FaceCount()).To(BeZero())
		})

		It("returns 404 for an unknown person", func() {
			req, err := http.NewRequest(http.MethodDelete, "/caregiver/person/ghost", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := ts.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})
})

var _ = Describe("handleSaveMemory", func() {
	var (
		ts       *testServer
		personID string
	)

	BeforeEach(func() {
		ts = newTestServer()
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
			Name:  "Sarah",
			Photo: frame("sarah-face"),
		}))
		Expect(err).NotTo(HaveOccurred())
		var person identity.Person
		decodeBody(resp, &person)
		personID = person.ID
	})

	It("stores a summarized memory", func() {
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/memory/save", SaveMemoryRequest{
			PersonID:   personID,
			Transcript: "We talked about the garden for a while.",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

		var memory identity.Memory
		decodeBody(resp, &memory)
		Expect(memory.Summary).To(Equal("Talked about the garden."))
		Expect(memory.EmotionalTone).To(Equal("warm"))
		Expect(ts.index.MemoryCount()).To(Equal(1))
	})

	It("requires person_id and transcript", func() {
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/memory/save", SaveMemoryRequest{
			Transcript: "hello",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

		resp, err = ts.app.Test(jsonRequest(http.MethodPost, "/memory/save", SaveMemoryRequest{
			PersonID: personID,
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("returns 404 for an unknown person", func() {
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/memory/save", SaveMemoryRequest{
			PersonID:   "ghost",
			Transcript: "hello",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
	})
})

var _ = Describe("handleWhisper", func() {
	var ts *testServer

	BeforeEach(func() {
		ts = newTestServer()
	})

	It("composes a whisper for a confirmed person", func() {
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
			Name:  "Sarah",
			Photo: frame("sarah-face"),
		}))
		Expect(err).NotTo(HaveOccurred())
		var person identity.Person
		decodeBody(resp, &person)

		req, err := http.NewRequest(http.MethodGet, "/whisper/"+person.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err = ts.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var w whisper.Whisper
		decodeBody(resp, &w)
		Expect(w.Text).NotTo(BeEmpty())
	})

	It("returns 422 for a temporary person", func() {
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/recognize", RecognizeRequest{
			Frames: []string{frame("stranger")},
		}))
		Expect(err).NotTo(HaveOccurred())
		var body RecognizeResponse
		decodeBody(resp, &body)

		req, err := http.NewRequest(http.MethodGet, "/whisper/"+body.PersonID, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err = ts.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
	})

	It("returns 404 for an unknown person", func() {
		req, err := http.NewRequest(http.MethodGet, "/whisper/ghost", nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := ts.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
	})
})

var _ = Describe("handleContext", func() {
	It("assembles person, memories, and routines", func() {
		ts := newTestServer()
		resp, err := ts.app.Test(jsonRequest(http.MethodPost, "/caregiver/enroll", EnrollRequest{
			Name:  "Sarah",
			Photo: frame("sarah-face"),
		}))
		Expect(err).NotTo(HaveOccurred())
		var person identity.Person
		decodeBody(resp, &person)

		_, err = ts.app.Test(jsonRequest(http.MethodPost, "/memory/save", SaveMemoryRequest{
			PersonID:   person.ID,
			Transcript: "We talked about the garden.",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(ts.store.ReplaceRoutines(context.Background(), person.ID, []*identity.Routine{
			{ID: "r1", PersonID: person.ID, Text: "Visits on Sundays", Confidence: 0.9, CreatedAt: time.Now().UTC()},
		})).To(Succeed())

		req, err := http.NewRequest(http.MethodGet, "/context/"+person.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err = ts.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var pc lifecycle.PersonContext
		decodeBody(resp, &pc)
		Expect(pc.Person.Name).To(Equal("Sarah"))
		Expect(pc.Memories).To(HaveLen(1))
		Expect(pc.Routines).To(HaveLen(1))
	})

	It("returns 404 for an unknown person", func() {
		ts := newTestServer()
		req, err := http.NewRequest(http.MethodGet, "/context/ghost", nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := ts.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
	})
})
