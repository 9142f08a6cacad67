package cli

import (
	"log"

	"github.com/spf13/cobra"

	"qbank-service/internal/config"
	"qbank-service/internal/domain"
	"qbank-service/internal/storage"
)

// NewSeedCmd resets the document to the bundled demo content. Existing
// accounts and sessions are wiped.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Reset the document to demo content",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store := storage.New(cfg.Storage.Path)
			if err := store.Reseed(demoDocument()); err != nil {
				return err
			}
			log.Printf("seeded demo content into %s", store.Path())
			return nil
		},
	}
}

// NewCheckCmd runs an integrity pass: load, normalize, write back.
func NewCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify and repair the document schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store := storage.New(cfg.Storage.Path)
			if err := store.EnsureSchema(); err != nil {
				return err
			}
			log.Printf("document %s is consistent", store.Path())
			return nil
		},
	}
}

// demoDocument mirrors the sample congenital heart disease study content.
// The demo account has no password; the first login sets one.
func demoDocument() *domain.Document {
	doc := domain.NewDocument()
	doc.Objectives = []domain.Objective{
		{
			ID:          "obj1",
			Name:        "Ventricular Septal Defects",
			Description: "Diagnose and manage ventricular septal defects using imaging and clinical findings.",
		},
		{
			ID:          "obj2",
			Name:        "Tetralogy of Fallot",
			Description: "Identify anatomical hallmarks of Tetralogy of Fallot and plan staged interventions.",
		},
	}
	doc.Questions = []domain.Question{
		{
			ID:          "q1",
			ObjectiveID: "obj1",
			Text:        "A 2-week-old infant presents with a harsh holosystolic murmur at the lower left sternal border. Which finding best supports a diagnosis of a moderate ventricular septal defect?",
			Options: map[string]string{
				"A": "Fixed, widely split S2 on auscultation",
				"B": "Prominent left-to-right shunting on Doppler echocardiography",
				"C": "Differential cyanosis limited to the lower extremities",
				"D": "Diminished pulmonary vascular markings on chest X-ray",
			},
			CorrectAnswer: "B",
			Explanation:   "Moderate VSDs typically show a left-to-right shunt with increased pulmonary blood flow on Doppler imaging.",
		},
		{
			ID:          "q2",
			ObjectiveID: "obj1",
			Text:        "During follow-up, which clinical change most strongly indicates the need for surgical intervention in a child with a previously hemodynamically insignificant VSD?",
			Options: map[string]string{
				"A": "Improved growth velocity and weight gain",
				"B": "Onset of exertional dyspnea with elevated pulmonary pressures",
				"C": "Normalization of QRS axis on serial ECGs",
				"D": "Resolution of systolic murmur intensity",
			},
			CorrectAnswer: "B",
			Explanation:   "Rising pulmonary pressures and new dyspnea signal increasing shunt volume and need for closure.",
		},
		{
			ID:          "q3",
			ObjectiveID: "obj2",
			Text:        "Which set of findings constitutes the classic tetrad of Tetralogy of Fallot?",
			Options: map[string]string{
				"A": "VSD, overriding aorta, right ventricular outflow obstruction, right ventricular hypertrophy",
				"B": "ASD, pulmonary stenosis, left ventricular hypertrophy, coarctation",
				"C": "VSD, patent ductus arteriosus, mitral stenosis, dextrocardia",
				"D": "Truncus arteriosus, ASD, tricuspid atresia, aortic stenosis",
			},
			CorrectAnswer: "A",
			Explanation:   "The tetrad is a VSD, an overriding aorta, right ventricular outflow tract obstruction, and right ventricular hypertrophy.",
		},
		{
			ID:          "q4",
			ObjectiveID: "obj2",
			Text:        "A toddler with unrepaired Tetralogy of Fallot squats during a hypercyanotic spell. Squatting improves oxygenation primarily by:",
			Options: map[string]string{
				"A": "Decreasing systemic vascular resistance",
				"B": "Increasing systemic vascular resistance and reducing right-to-left shunting",
				"C": "Slowing the heart rate through vagal stimulation",
				"D": "Compressing the femoral veins to reduce preload",
			},
			CorrectAnswer: "B",
			Explanation:   "Squatting raises systemic vascular resistance, which reduces the right-to-left shunt across the VSD and improves pulmonary flow.",
		},
	}
	doc.Users["demo"] = domain.Account{
		Badges:              []string{},
		Level:               1,
		CompletedObjectives: map[string]domain.ObjectiveResult{},
	}
	return doc
}
